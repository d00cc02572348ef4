package fallback

import "github.com/ppiankov/chartrisk/internal/model"

// TriggerNode is one deterministic heuristic of the fallback catalog.
type TriggerNode struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Predicate         Predicate      `json:"predicate"`
	RiskLevel         model.Severity `json:"risk_level"`
	FallbackAction    string         `json:"fallback_action"`
	AuditSafeDefault  string         `json:"audit_safe_default"`
	ImprovementPrompt string         `json:"improvement_prompt"`
}

var measurementTerms = []string{
	"%", "percent", "feet", "ft", "meters", "seconds", "sec", "reps", "repetitions",
	"trials", "degrees", "score", "/10", "lbs", "minutes", "out of",
}

var assistLevels = []string{
	"independent", "modified independent", "mod i", "supervision", "standby",
	"sba", "contact guard", "cga", "min assist", "minimal assist", "minimal assistance",
	"mod assist", "moderate assist", "moderate assistance", "max assist",
	"maximal assist", "maximal assistance", "dependent", "total assist", "%", "percent",
}

// DefaultCatalog returns the built-in trigger nodes in evaluation order.
func DefaultCatalog() []TriggerNode {
	return []TriggerNode{
		{
			ID:   "skilled-need",
			Name: "Skilled Need Not Justified",
			Predicate: Predicate{
				Kind: KeywordAbsentAny,
				Keywords: []string{
					"skilled", "clinical reasoning", "clinical judgment", "professional judgment",
					"requires the skills", "therapist expertise", "expertise of a therapist",
				},
			},
			RiskLevel:         model.SeverityHigh,
			FallbackAction:    "Flag note for skilled-service review before billing",
			AuditSafeDefault:  "Skilled intervention required due to complexity of patient condition and need for clinical decision making.",
			ImprovementPrompt: "State why the services required the skills of a licensed therapist, naming the clinical decisions made during the session.",
		},
		{
			ID:   "safety",
			Name: "Safety Not Documented",
			Predicate: Predicate{
				Kind: KeywordAbsentAny,
				Keywords: []string{
					"safety", "safe", "supervision", "fall risk", "falls", "guarding", "gait belt",
					"precautions", "contact guard", "standby assist",
				},
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Request safety addendum",
			AuditSafeDefault:  "Patient safety monitored throughout session; standard precautions observed.",
			ImprovementPrompt: "Document safety measures, supervision level and fall-risk considerations for the session.",
		},
		{
			ID:   "functional-goals",
			Name: "Functional Goals Missing",
			Predicate: Predicate{
				Kind:     KeywordAbsentAny,
				Keywords: []string{"goal", "goals", "ltg", "stg", "long-term goal", "short-term goal", "objective goal"},
			},
			RiskLevel:         model.SeverityHigh,
			FallbackAction:    "Link note to plan-of-care goals",
			AuditSafeDefault:  "Treatment directed toward functional goals established in the plan of care.",
			ImprovementPrompt: "Reference the measurable, time-bound functional goals this session addressed.",
		},
		{
			ID:   "progress-measurement",
			Name: "Progress Not Measured",
			Predicate: Predicate{
				Kind:     KeywordPresentWithoutAny,
				Keywords: []string{"progress", "progressing", "improved", "improving", "improvement", "better"},
				Required: measurementTerms,
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Request objective measures",
			AuditSafeDefault:  "Progress measured against baseline using objective measures.",
			ImprovementPrompt: "Quantify progress against baseline with objective measures such as distance, repetitions, scores or percentages.",
		},
		{
			ID:   "medical-necessity",
			Name: "Medical Necessity Not Established",
			Predicate: Predicate{
				Kind: KeywordAbsentAny,
				Keywords: []string{
					"medically necessary", "medical necessity", "necessary to", "in order to",
					"functional limitation", "functional deficit", "impairment", "unable to", "limits",
				},
			},
			RiskLevel:         model.SeverityHigh,
			FallbackAction:    "Hold claim pending necessity statement",
			AuditSafeDefault:  "Therapy is medically necessary to address functional limitations impacting daily activities.",
			ImprovementPrompt: "Tie the treatment to a functional limitation and explain why it is medically necessary.",
		},
		{
			ID:   "pain-without-plan",
			Name: "Pain Reported Without Intervention",
			Predicate: Predicate{
				Kind:     KeywordPresentWithoutAny,
				Keywords: []string{"pain", "painful", "soreness"},
				Required: []string{
					"modality", "modalities", "ice", "heat", "cold pack", "hot pack", "tens",
					"manual therapy", "pain management", "positioning", "rest break", "rest breaks",
					"reassess", "will monitor", "pain decreased", "pain reduced",
				},
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Request pain response documentation",
			AuditSafeDefault:  "Pain monitored and addressed with appropriate interventions.",
			ImprovementPrompt: "Describe how reported pain was addressed and how the patient responded.",
		},
		{
			ID:   "time-without-units",
			Name: "Treatment Time Without Billing Units",
			Predicate: Predicate{
				Kind:     KeywordPresentWithoutAny,
				Keywords: []string{"minutes", "minute", "mins", "hour", "hours"},
				Required: []string{
					"unit", "units", "cpt", "timed code", "97110", "97112", "97116", "97140",
					"97530", "97535", "92507", "92526",
				},
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Reconcile minutes with billed units",
			AuditSafeDefault:  "Treatment minutes documented per timed CPT code.",
			ImprovementPrompt: "Break treatment time down by CPT code and record the units billed.",
		},
		{
			ID:   "repetitive-without-progression",
			Name: "Repetitive Treatment Without Progression",
			Predicate: Predicate{
				Kind: KeywordPresentWithoutAny,
				Keywords: []string{
					"same as last visit", "same as previous", "continued same", "continue same",
					"as before", "per routine", "same exercises", "repeated",
				},
				Required: []string{"progressed", "increased", "advanced", "upgraded", "progression", "modified", "added"},
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Request progression rationale",
			AuditSafeDefault:  "Program progressed based on patient response.",
			ImprovementPrompt: "Explain how the program was progressed or modified from the previous session.",
		},
		{
			ID:   "maintenance-language",
			Name: "Maintenance Language Without Skilled Rationale",
			Predicate: Predicate{
				Kind:          KeywordPresentWithDisqualifier,
				Keywords:      []string{"maintain", "maintenance", "maintained"},
				Disqualifiers: []string{"plateau", "plateaued", "no change", "no progress", "unchanged", "status quo"},
			},
			RiskLevel:         model.SeverityHigh,
			FallbackAction:    "Route to maintenance-therapy review",
			AuditSafeDefault:  "Skilled maintenance therapy required to prevent decline; services cannot be safely performed by non-skilled personnel.",
			ImprovementPrompt: "If services are maintenance therapy, explain why a therapist's skills are needed to maintain function safely.",
		},
		{
			ID:   "generic-tolerance",
			Name: "Generic Tolerance Statement",
			Predicate: Predicate{
				Kind:     KeywordPresentWithoutAny,
				Keywords: []string{"tolerated well", "tolerated treatment well", "tolerated session well", "tolerated tx well", "tolerated therapy well"},
				Required: []string{"vitals", "vital signs", "heart rate", "blood pressure", "spo2", "rpe", "borg", "fatigue", "rest break", "rest breaks", "pain level"},
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Request objective tolerance response",
			AuditSafeDefault:  "Patient response to treatment monitored, including vitals and exertion.",
			ImprovementPrompt: "Replace generic tolerance statements with the objective response: vitals, exertion, symptoms or rest needs.",
		},
		{
			ID:   "assistance-level-not-quantified",
			Name: "Assistance Level Not Quantified",
			Predicate: Predicate{
				Kind:     KeywordPresentWithoutAny,
				Keywords: []string{"assist", "assistance", "assisted", "help", "cues", "cueing"},
				Required: assistLevels,
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Request quantified assistance level",
			AuditSafeDefault:  "Assistance level quantified using standard terminology.",
			ImprovementPrompt: "Quantify assistance with standard levels (independent, supervision, contact guard, min/mod/max assist) or percentage of effort.",
		},
		{
			ID:   "signature-missing",
			Name: "Clinician Signature Missing",
			Predicate: Predicate{
				Kind:     KeywordAbsentAny,
				Keywords: []string{"signed", "signature", "electronically signed", "e-signed", "dpt", "otr/l", "otr", "ccc-slp", "pta", "cota", "licensed"},
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Return note for signature",
			AuditSafeDefault:  "Note signed by treating clinician with credentials and date.",
			ImprovementPrompt: "Sign the note with name, credentials and date of service.",
		},
		{
			ID:   "home-program",
			Name: "Home Exercise Program Not Addressed",
			Predicate: Predicate{
				Kind:     KeywordAbsentAny,
				Keywords: []string{"hep", "home exercise", "home program", "home exercise program", "caregiver training", "family training", "patient education", "educated"},
			},
			RiskLevel:         model.SeverityModerate,
			FallbackAction:    "Request education or HEP entry",
			AuditSafeDefault:  "Patient educated on home exercise program; demonstrated understanding.",
			ImprovementPrompt: "Document the home program or education provided and the patient's understanding.",
		},
		{
			ID:   "discharge-despite-deficits",
			Name: "Discharge With Unresolved Deficits",
			Predicate: Predicate{
				Kind:     KeywordPresentWithDisqualifier,
				Keywords: []string{"discharge", "discharged", "d/c"},
				Disqualifiers: []string{
					"continues to require", "remains unsafe", "deficits remain", "ongoing deficits",
					"goals not met", "not met", "still requires",
				},
			},
			RiskLevel:         model.SeverityHigh,
			FallbackAction:    "Review discharge decision",
			AuditSafeDefault:  "Discharge appropriate; remaining deficits addressed through HEP and follow-up recommendations.",
			ImprovementPrompt: "Explain the discharge rationale for unmet goals and the follow-up plan for remaining deficits.",
		},
	}
}

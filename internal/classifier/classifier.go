// Package classifier maps free-text questions to an analysis category
package classifier

import "strings"

// Category is the topical bucket used to pick a prompt template
type Category string

const (
	UserAnalysis        Category = "user_analysis"
	ActionAnalysis      Category = "action_analysis"
	SecurityAnalysis    Category = "security_analysis"
	PerformanceAnalysis Category = "performance_analysis"
)

// rule associates a category with the keywords that select it
type rule struct {
	category Category
	keywords []string
}

// Rules are evaluated in this order and the first match wins, so a question
// mentioning both a user and a security keyword is a user question.
var rules = []rule{
	{UserAnalysis, []string{"user", "utilisateur", "qui"}},
	{ActionAnalysis, []string{"action", "select", "insert", "update", "delete", "requête"}},
	{SecurityAnalysis, []string{"sécurité", "sécurisé", "suspect", "anomalie"}},
}

// Classify returns the category of a question. Keywords match as substrings
// of the lower-cased question; with no match the question is a performance one.
func Classify(question string) Category {
	q := strings.ToLower(question)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.category
			}
		}
	}
	return PerformanceAnalysis
}

// Categories lists every category in precedence order
func Categories() []Category {
	return []Category{UserAnalysis, ActionAnalysis, SecurityAnalysis, PerformanceAnalysis}
}

// SampleQuestions returns example questions users can ask about audit logs
func SampleQuestions() []string {
	return []string{
		"Quels sont les utilisateurs les plus actifs ?",
		"Combien d'opérations SELECT ont été effectuées ?",
		"Y a-t-il des activités suspectes ?",
		"Quels programmes clients sont les plus utilisés ?",
		"Combien d'actions destructives (DELETE, TRUNCATE) ont été détectées ?",
		"Quels schémas sont les plus consultés ?",
		"À quelles heures l'activité est-elle la plus élevée ?",
		"Y a-t-il des accès au schéma SYS ?",
		"Quels utilisateurs ont effectué des modifications ?",
		"Combien de sessions uniques sont enregistrées ?",
	}
}

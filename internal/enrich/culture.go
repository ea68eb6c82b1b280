package enrich

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ScientiaCapital/claude-education-platform/internal/classify"
)

// Adaptation is a culturally familiar example or project for a topic.
type Adaptation struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Explanation   string `json:"explanation"`
	LanguageNotes string `json:"language_notes,omitempty"`
}

type adaptationRule struct {
	topics     []string
	adaptation Adaptation
}

var adaptationRules = []adaptationRule{
	{
		topics: []string{"variables", "data types"},
		adaptation: Adaptation{
			Type:        "example",
			Title:       "Variables con nombres mexicanos",
			Content:     `nombre_estudiante = "María", edad = 15, ciudad = "Guadalajara"`,
			Explanation: "Usar nombres y lugares familiares para explicar variables",
		},
	},
	{
		topics: []string{"functions", "funciones"},
		adaptation: Adaptation{
			Type:        "example",
			Title:       "Función para calcular el precio de tacos",
			Content:     "def calcular_precio_tacos(cantidad, precio_por_taco=15): return cantidad * precio_por_taco",
			Explanation: "Ejemplo práctico usando precios en pesos mexicanos",
		},
	},
	{
		topics: []string{"lists", "arrays", "listas"},
		adaptation: Adaptation{
			Type:        "example",
			Title:       "Lista de estados mexicanos",
			Content:     `estados = ["CDMX", "Jalisco", "Nuevo León", "Yucatán"]`,
			Explanation: "Usar datos geográficos conocidos para enseñar listas",
		},
	},
	{
		topics: []string{"machine learning", "ml", "clasificación"},
		adaptation: Adaptation{
			Type:        "project",
			Title:       "Clasificador de comida mexicana",
			Content:     "Crear un modelo que distinga entre tacos, quesadillas y tortas",
			Explanation: "Proyecto de ML con comida familiar para los estudiantes",
		},
	},
}

const spanishNotes = "Explicar términos técnicos en español con equivalentes en inglés"

// Adaptations returns the cultural adaptations for a topic. The topic must
// match one of the known names exactly, ignoring case.
func Adaptations(topic, language string) []Adaptation {
	name := strings.ToLower(strings.TrimSpace(topic))
	out := []Adaptation{}
	for _, r := range adaptationRules {
		if !slices.Contains(r.topics, name) {
			continue
		}
		a := r.adaptation
		if language == LanguageSpanish {
			a.LanguageNotes = spanishNotes
		}
		out = append(out, a)
		break
	}
	return out
}

// Stage is one step of a topic's difficulty progression.
type Stage struct {
	Level        string   `json:"level"`
	Description  string   `json:"description"`
	Activities   []string `json:"activities"`
	TimeEstimate string   `json:"time_estimate"`
}

// Progression returns the learning stages for a topic. The advanced stage
// is only added for the 14-18 group.
func Progression(topic, ageGroup string) []Stage {
	stages := []Stage{
		{
			Level:        "Introducción",
			Description:  "Conceptos básicos de " + topic,
			Activities:   []string{"Lectura", "Ejemplos simples", "Explicación visual"},
			TimeEstimate: "30 minutos",
		},
		{
			Level:        "Práctica guiada",
			Description:  "Ejercicios paso a paso de " + topic,
			Activities:   []string{"Seguir tutorial", "Modificar ejemplos", "Preguntas"},
			TimeEstimate: "45 minutos",
		},
		{
			Level:        "Práctica independiente",
			Description:  "Crear proyectos propios con " + topic,
			Activities:   []string{"Proyecto personal", "Experimentación", "Depuración"},
			TimeEstimate: "60 minutos",
		},
	}
	if ageGroup == classify.AgeGroupTeen {
		stages = append(stages, Stage{
			Level:        "Aplicación avanzada",
			Description:  "Integrar " + topic + " en proyectos complejos",
			Activities:   []string{"Proyecto colaborativo", "Optimización", "Documentación"},
			TimeEstimate: "90 minutos",
		})
	}
	return stages
}

const baseLearningMinutes = 120

// LearningMinutes estimates study time from the amount of material. Younger
// students get 30% more time for the material on top of the base.
func LearningMinutes(tutorials, examples, exercises int, ageGroup string) int {
	extra := float64(tutorials*20 + examples*10 + exercises*15)
	if ageGroup == classify.AgeGroupYoung {
		extra *= 1.3
	}
	return baseLearningMinutes + int(math.Round(extra))
}

// FormatMinutes renders a duration the way lesson plans show it.
func FormatMinutes(total int) string {
	if total < 120 {
		return fmt.Sprintf("%d minutos", total)
	}
	return fmt.Sprintf("%d horas %d minutos", total/60, total%60)
}

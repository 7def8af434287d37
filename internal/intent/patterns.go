package intent

import "citabot/internal/models"

// pattern is a weighted phrase. Scores for an intent are summed over all
// matched patterns and clamped to 1.0.
type pattern struct {
	phrase string
	weight float64
}

// patternTables holds the full per-language pattern set. Phrases are
// matched as lowercase substrings, longest phrases first so that
// "cancel my appointment" outweighs a bare "appointment".
var patternTables = map[string]map[models.IntentType][]pattern{
	"en": {
		models.IntentNewBooking: {
			{"book an appointment", 0.85},
			{"make an appointment", 0.85},
			{"schedule an appointment", 0.85},
			{"i want to book", 0.8},
			{"i would like to book", 0.8},
			{"reserve", 0.5},
			{"book", 0.45},
			{"appointment", 0.4},
		},
		models.IntentModifyBooking: {
			{"change my appointment", 0.9},
			{"reschedule", 0.85},
			{"move my appointment", 0.85},
			{"another time", 0.4},
			{"change", 0.3},
		},
		models.IntentCancelBooking: {
			{"cancel my appointment", 0.95},
			{"cancel my booking", 0.95},
			{"cancel", 0.6},
		},
		models.IntentAvailability: {
			{"what times are available", 0.9},
			{"do you have availability", 0.9},
			{"are you open", 0.75},
			{"available", 0.45},
			{"free slots", 0.7},
			{"opening hours", 0.7},
		},
		models.IntentConversational: {
			{"thank you", 0.8},
			{"thanks", 0.75},
			{"hello", 0.7},
			{"hi", 0.6},
			{"good morning", 0.75},
			{"bye", 0.7},
		},
	},
	"es": {
		models.IntentNewBooking: {
			{"quiero una cita", 0.85},
			{"quiero reservar", 0.85},
			{"agendar una cita", 0.85},
			{"pedir cita", 0.8},
			{"reservar", 0.55},
			{"agendar", 0.55},
			{"cita", 0.4},
		},
		models.IntentModifyBooking: {
			{"cambiar mi cita", 0.9},
			{"reprogramar", 0.85},
			{"mover mi cita", 0.85},
			{"otro horario", 0.45},
			{"cambiar", 0.3},
		},
		models.IntentCancelBooking: {
			{"cancelar mi cita", 0.95},
			{"anular mi cita", 0.95},
			{"cancelar", 0.6},
			{"anular", 0.55},
		},
		models.IntentAvailability: {
			{"qué horarios tienen", 0.9},
			{"tienen disponibilidad", 0.9},
			{"están abiertos", 0.75},
			{"disponible", 0.45},
			{"horarios libres", 0.7},
			{"horario de atención", 0.7},
		},
		models.IntentConversational: {
			{"gracias", 0.8},
			{"hola", 0.7},
			{"buenos días", 0.75},
			{"buenas tardes", 0.75},
			{"adiós", 0.7},
		},
	},
	"pt": {
		models.IntentNewBooking: {
			{"quero marcar", 0.85},
			{"agendar um horário", 0.85},
			{"marcar uma consulta", 0.85},
			{"quero reservar", 0.8},
			{"agendar", 0.55},
			{"marcar", 0.5},
			{"consulta", 0.4},
		},
		models.IntentModifyBooking: {
			{"mudar meu horário", 0.9},
			{"remarcar", 0.85},
			{"outro horário", 0.45},
			{"mudar", 0.3},
		},
		models.IntentCancelBooking: {
			{"cancelar minha consulta", 0.95},
			{"desmarcar", 0.85},
			{"cancelar", 0.6},
		},
		models.IntentAvailability: {
			{"quais horários têm", 0.9},
			{"tem disponibilidade", 0.9},
			{"estão abertos", 0.75},
			{"disponível", 0.45},
			{"horários livres", 0.7},
		},
		models.IntentConversational: {
			{"obrigado", 0.8},
			{"obrigada", 0.8},
			{"olá", 0.7},
			{"oi", 0.6},
			{"bom dia", 0.75},
			{"tchau", 0.7},
		},
	},
}

// fallbackKeywords is the strict subset used by the degraded keyword-only
// classifier: one unambiguous keyword per intent per language.
var fallbackKeywords = map[string]map[models.IntentType]string{
	"en": {
		models.IntentNewBooking:    "book",
		models.IntentModifyBooking: "reschedule",
		models.IntentCancelBooking: "cancel",
		models.IntentAvailability:  "available",
	},
	"es": {
		models.IntentNewBooking:    "cita",
		models.IntentModifyBooking: "reprogramar",
		models.IntentCancelBooking: "cancelar",
		models.IntentAvailability:  "disponible",
	},
	"pt": {
		models.IntentNewBooking:    "marcar",
		models.IntentModifyBooking: "remarcar",
		models.IntentCancelBooking: "cancelar",
		models.IntentAvailability:  "disponível",
	},
}

// weekdayNames per language, index matches time.Weekday (Sunday = 0).
var weekdayNames = map[string][7]string{
	"en": {"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
	"es": {"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"},
	"pt": {"domingo", "segunda", "terça", "quarta", "quinta", "sexta", "sábado"},
}

var tomorrowWords = map[string]string{
	"en": "tomorrow",
	"es": "mañana",
	"pt": "amanhã",
}

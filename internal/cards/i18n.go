package cards

import "strings"

// fallbackLanguage backs every localized lookup: a missing key or an
// unsupported language degrades to English, never errors.
const fallbackLanguage = "en"

var messages = map[string]map[string]string{
	"slot_card_title": {
		"en": "Available times",
		"es": "Horarios disponibles",
		"pt": "Horários disponíveis",
	},
	"slot_card_alternatives": {
		"en": "That time is taken. Closest alternatives:",
		"es": "Ese horario está ocupado. Alternativas más cercanas:",
		"pt": "Esse horário está ocupado. Alternativas mais próximas:",
	},
	"confirm_title": {
		"en": "Confirm your appointment",
		"es": "Confirma tu cita",
		"pt": "Confirme seu horário",
	},
	"confirm_yes": {
		"en": "✅ Confirm",
		"es": "✅ Confirmar",
		"pt": "✅ Confirmar",
	},
	"confirm_no": {
		"en": "❌ Cancel",
		"es": "❌ Cancelar",
		"pt": "❌ Cancelar",
	},
	"booked": {
		"en": "✅ Booked! Your confirmation code is %s.",
		"es": "✅ ¡Reservado! Tu código de confirmación es %s.",
		"pt": "✅ Reservado! Seu código de confirmação é %s.",
	},
	"error_out_of_hours": {
		"en": "That time is outside our working hours.",
		"es": "Ese horario está fuera de nuestro horario de atención.",
		"pt": "Esse horário está fora do nosso horário de funcionamento.",
	},
	"error_duration_exceeds": {
		"en": "The service doesn't fit before closing time.",
		"es": "El servicio no alcanza antes de la hora de cierre.",
		"pt": "O serviço não cabe antes do horário de fechamento.",
	},
	"error_staff_unavailable": {
		"en": "That staff member isn't working that day.",
		"es": "Ese profesional no trabaja ese día.",
		"pt": "Esse profissional não trabalha nesse dia.",
	},
	"error_session_expired": {
		"en": "Your session expired. Please start a new booking.",
		"es": "Tu sesión expiró. Por favor inicia una nueva reserva.",
		"pt": "Sua sessão expirou. Por favor, comece uma nova reserva.",
	},
	"error_conflict": {
		"en": "Sorry, that slot was just taken. Here are the closest alternatives:",
		"es": "Lo sentimos, ese horario acaba de ocuparse. Estas son las alternativas más cercanas:",
		"pt": "Desculpe, esse horário acabou de ser ocupado. Estas são as alternativas mais próximas:",
	},
	"error_validation": {
		"en": "I couldn't understand that request. Could you rephrase it?",
		"es": "No entendí la solicitud. ¿Puedes reformularla?",
		"pt": "Não entendi o pedido. Pode reformular?",
	},
	"error_no_slots": {
		"en": "No free times found for that request.",
		"es": "No se encontraron horarios libres para esa solicitud.",
		"pt": "Nenhum horário livre encontrado para esse pedido.",
	},
	"error_generic": {
		"en": "Something went wrong, please try again in a moment.",
		"es": "Algo salió mal, inténtalo de nuevo en un momento.",
		"pt": "Algo deu errado, tente novamente em instantes.",
	},
	"conversational_reply": {
		"en": "Hi! I can help you book an appointment. Just tell me the service and when you'd like to come.",
		"es": "¡Hola! Puedo ayudarte a reservar una cita. Dime el servicio y cuándo quieres venir.",
		"pt": "Olá! Posso ajudar você a marcar um horário. Diga o serviço e quando quer vir.",
	},
	"cancelled": {
		"en": "Okay, nothing was booked.",
		"es": "De acuerdo, no se reservó nada.",
		"pt": "Certo, nada foi reservado.",
	},
}

var weekdayLabels = map[string][7]string{
	"en": {"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	"es": {"dom", "lun", "mar", "mié", "jue", "vie", "sáb"},
	"pt": {"dom", "seg", "ter", "qua", "qui", "sex", "sáb"},
}

// lookup resolves a message key for a language tag, falling back from
// "es-MX" to "es" to English.
func lookup(key, language string) string {
	table, ok := messages[key]
	if !ok {
		return ""
	}
	lang := strings.ToLower(language)
	if text, ok := table[lang]; ok {
		return text
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		if text, ok := table[lang[:i]]; ok {
			return text
		}
	}
	return table[fallbackLanguage]
}

func weekdayLabel(language string, weekday int) string {
	lang := strings.ToLower(language)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	labels, ok := weekdayLabels[lang]
	if !ok {
		labels = weekdayLabels[fallbackLanguage]
	}
	return labels[weekday%7]
}

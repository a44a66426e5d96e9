package assistant

type messageKey int

const (
	msgStarted messageKey = iota
	msgStopped
	msgLanguageChanged
)

var messages = map[string]map[messageKey]string{
	"en": {
		msgStarted:         "AI Vision Assistant started. Press Space to ask questions via voice.",
		msgStopped:         "AI Vision Assistant stopped.",
		msgLanguageChanged: "Response language set to English",
	},
	"hi": {
		msgStarted:         "AI Vision Assistant शुरू हो गया। आवाज़ से सवाल पूछने के लिए Space दबाएं।",
		msgStopped:         "AI Vision Assistant बंद हो गया।",
		msgLanguageChanged: "जवाब की भाषा हिंदी कर दी गई",
	},
}

// message returns key in the response language, falling back to English.
func (o *Orchestrator) message(key messageKey) string {
	if m, ok := messages[o.Language()]; ok {
		return m[key]
	}
	return messages["en"][key]
}

package domain

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedLanguages is listed in display order; "auto" is only valid as a source.
var SupportedLanguages = []Language{
	{"auto", "Auto Detect"},
	{"af", "Afrikaans"}, {"sq", "Albanian"}, {"ar", "Arabic"}, {"hy", "Armenian"},
	{"az", "Azerbaijani"}, {"eu", "Basque"}, {"be", "Belarusian"}, {"bn", "Bengali"},
	{"bs", "Bosnian"}, {"bg", "Bulgarian"}, {"ca", "Catalan"}, {"zh", "Chinese (Simplified)"},
	{"zh-TW", "Chinese (Traditional)"}, {"hr", "Croatian"}, {"cs", "Czech"},
	{"da", "Danish"}, {"nl", "Dutch"}, {"en", "English"}, {"eo", "Esperanto"},
	{"et", "Estonian"}, {"fi", "Finnish"}, {"fr", "French"}, {"gl", "Galician"},
	{"ka", "Georgian"}, {"de", "German"}, {"el", "Greek"}, {"gu", "Gujarati"},
	{"ht", "Haitian Creole"}, {"he", "Hebrew"}, {"hi", "Hindi"}, {"hu", "Hungarian"},
	{"is", "Icelandic"}, {"id", "Indonesian"}, {"ga", "Irish"}, {"it", "Italian"},
	{"ja", "Japanese"}, {"kn", "Kannada"}, {"kk", "Kazakh"}, {"ko", "Korean"},
	{"lv", "Latvian"}, {"lt", "Lithuanian"}, {"mk", "Macedonian"}, {"ms", "Malay"},
	{"ml", "Malayalam"}, {"mt", "Maltese"}, {"mr", "Marathi"}, {"mn", "Mongolian"},
	{"ne", "Nepali"}, {"no", "Norwegian"}, {"fa", "Persian"}, {"pl", "Polish"},
	{"pt", "Portuguese"}, {"pa", "Punjabi"}, {"ro", "Romanian"}, {"ru", "Russian"},
	{"sr", "Serbian"}, {"sk", "Slovak"}, {"sl", "Slovenian"}, {"es", "Spanish"},
	{"sw", "Swahili"}, {"sv", "Swedish"}, {"tl", "Filipino"}, {"ta", "Tamil"},
	{"te", "Telugu"}, {"th", "Thai"}, {"tr", "Turkish"}, {"uk", "Ukrainian"},
	{"ur", "Urdu"}, {"uz", "Uzbek"}, {"vi", "Vietnamese"}, {"cy", "Welsh"},
}

var languageNames = func() map[string]string {
	m := make(map[string]string, len(SupportedLanguages))
	for _, l := range SupportedLanguages {
		m[l.Code] = l.Name
	}
	return m
}()

// LanguageName returns the display name, or the code itself when unknown.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// IsTargetLanguage reports whether code can be translated into.
func IsTargetLanguage(code string) bool {
	_, ok := languageNames[code]
	return ok && code != DefaultSourceLanguage
}

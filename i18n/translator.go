package i18n

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "min" or "got").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "buffer_underrun":
			return "ビット列の終端を超えて読み取りました"
		case "constraint_violation":
			return "制約に違反しています"
		case "wire_error":
			return "ビット列が文法に一致しません"
		case "schema_error":
			return "スキーマが不正です"
		case "parse_error":
			return "解析エラー"
		case "unresolved_reference":
			return "未解決の型参照です"
		}
	default: // "en"
		switch code {
		case "buffer_underrun":
			return "read past end of bit stream"
		case "constraint_violation":
			return "constraint violated"
		case "wire_error":
			return "bit stream does not match the grammar"
		case "schema_error":
			return "invalid schema"
		case "parse_error":
			return "parse error"
		case "unresolved_reference":
			return "unresolved type reference"
		}
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }

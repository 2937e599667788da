// Package i18n translates the user-facing avatar messages.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message ids, which are also the English texts
const (
	MsgNoFile      = "No file provided"
	MsgInvalidFile = "Invalid file provided"
	MsgFileTooBig  = "File is too big"
	MsgNotSquare   = "Crop is not square"
	MsgContactAdm  = "An error occurred. Please contact your admin."
)

var translations = map[language.Tag]map[string]string{
	language.German: {
		MsgNoFile:      "Keine Datei angegeben",
		MsgInvalidFile: "Ungültige Datei angegeben",
		MsgFileTooBig:  "Die Datei ist zu groß",
		MsgNotSquare:   "Der Zuschnitt ist nicht quadratisch",
		MsgContactAdm:  "Es ist ein Fehler aufgetreten. Bitte kontaktiere Deinen Administrator.",
	},
	language.French: {
		MsgNoFile:      "Aucun fichier fourni",
		MsgInvalidFile: "Fichier non valide",
		MsgFileTooBig:  "Fichier trop volumineux",
		MsgNotSquare:   "Le recadrage n'est pas carré",
		MsgContactAdm:  "Une erreur est survenue. Veuillez contacter votre administrateur.",
	},
	language.Spanish: {
		MsgNoFile:      "No se ha proporcionado ningún archivo",
		MsgInvalidFile: "Archivo inválido",
		MsgFileTooBig:  "El archivo es demasiado grande",
		MsgNotSquare:   "El recorte no es cuadrado",
		MsgContactAdm:  "Ha ocurrido un error. Por favor, contacte con su administrador.",
	},
}

// Translator resolves messages against an Accept-Language value
type Translator struct {
	catalog   catalog.Catalog
	matcher   language.Matcher
	supported []language.Tag
}

// NewTranslator builds the catalog; English is the fallback
func NewTranslator() (*Translator, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	supported := []language.Tag{language.English}

	for tag, messages := range translations {
		for id, text := range messages {
			if err := builder.SetString(tag, id, text); err != nil {
				return nil, err
			}
		}
		supported = append(supported, tag)
	}

	return &Translator{
		catalog:   builder,
		matcher:   language.NewMatcher(supported),
		supported: supported,
	}, nil
}

// T translates msg for the given Accept-Language header value
func (t *Translator) T(acceptLanguage, msg string) string {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	// the matched tag may carry -u- extensions, the catalog wants the base tag
	_, index, _ := t.matcher.Match(tags...)

	p := message.NewPrinter(t.supported[index], message.Catalog(t.catalog))
	return p.Sprintf(message.Key(msg, msg))
}

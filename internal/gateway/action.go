package gateway

import (
	"fmt"
	"strings"

	"newsdesk/internal/models"
)

// Action is a decoded callback button press. Each concrete type carries
// exactly the fields its handler needs; there is no generic string bag to
// mis-split downstream.
type Action interface {
	isAction()
}

type ApproveAction struct{ ContentID string }

type RejectAction struct{ ContentID string }

type PublishAction struct{ ContentID string }

type SelectVariantAction struct {
	ContentID string
	Variant   string
}

type ToggleLanguageAction struct {
	ContentID string
	Language  models.Language
}

type OpenBuilderAction struct{ ContentID string }

type BuilderSelectAction struct {
	ContentID string
	Key       string
	Value     string
}

type BackAction struct{ ContentID string }

func (ApproveAction) isAction()        {}
func (RejectAction) isAction()         {}
func (PublishAction) isAction()        {}
func (SelectVariantAction) isAction()  {}
func (ToggleLanguageAction) isAction() {}
func (OpenBuilderAction) isAction()    {}
func (BuilderSelectAction) isAction()  {}
func (BackAction) isAction()           {}

// Callback data layout: verb first, content ID last, any verb arguments in
// between. The ID is taken from the final separator so argument values may
// themselves contain separators without corrupting the ID.
const actionSep = ":"

func EncodeApprove(id string) string  { return "approve" + actionSep + id }
func EncodeReject(id string) string   { return "reject" + actionSep + id }
func EncodePublish(id string) string  { return "publish" + actionSep + id }
func EncodeBuilder(id string) string  { return "builder" + actionSep + id }
func EncodeBack(id string) string     { return "back" + actionSep + id }

func EncodeVariant(id, variant string) string {
	return "variant" + actionSep + variant + actionSep + id
}

func EncodeLanguage(id string, lang models.Language) string {
	return "lang" + actionSep + string(lang) + actionSep + id
}

func EncodeBuilderSelect(id, key, value string) string {
	return "set" + actionSep + key + actionSep + value + actionSep + id
}

// DecodeAction parses callback data into a typed action. Unknown verbs and
// malformed payloads are errors; the caller acknowledges them without doing
// any work.
func DecodeAction(data string) (Action, error) {
	verb, rest, ok := strings.Cut(data, actionSep)
	if !ok || rest == "" {
		return nil, fmt.Errorf("malformed callback data %q", data)
	}

	// Content ID is everything after the last separator.
	id := rest
	args := ""
	if idx := strings.LastIndex(rest, actionSep); idx >= 0 {
		args = rest[:idx]
		id = rest[idx+1:]
	}
	if id == "" {
		return nil, fmt.Errorf("callback data %q has no content id", data)
	}

	switch verb {
	case "approve":
		return ApproveAction{ContentID: rest}, nil
	case "reject":
		return RejectAction{ContentID: rest}, nil
	case "publish":
		return PublishAction{ContentID: rest}, nil
	case "builder":
		return OpenBuilderAction{ContentID: rest}, nil
	case "back":
		return BackAction{ContentID: rest}, nil
	case "variant":
		if args == "" {
			return nil, fmt.Errorf("variant callback %q missing variant name", data)
		}
		return SelectVariantAction{ContentID: id, Variant: args}, nil
	case "lang":
		if args == "" {
			return nil, fmt.Errorf("language callback %q missing language code", data)
		}
		lang := models.Language(args)
		if !models.KnownLanguage(lang) {
			return nil, fmt.Errorf("language callback %q names unknown language", data)
		}
		return ToggleLanguageAction{ContentID: id, Language: lang}, nil
	case "set":
		key, value, ok := strings.Cut(args, actionSep)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("builder callback %q missing key or value", data)
		}
		return BuilderSelectAction{ContentID: id, Key: key, Value: value}, nil
	default:
		return nil, fmt.Errorf("unknown callback verb %q", verb)
	}
}

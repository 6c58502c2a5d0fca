package questionnaire

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Choice is one selectable option of a choice question. Two choices with the
// same id are the same choice, regardless of text or position.
type Choice struct {
	id        string
	text      string
	isDefault bool
	index     int
}

func NewChoice(id, text string, isDefault bool, index int) Choice {
	return Choice{id: id, text: text, isDefault: isDefault, index: index}
}

func parseChoice(option gjson.Result) (Choice, error) {
	id := option.Get("SUBID")
	if !id.Exists() {
		return Choice{}, &MalformedRowError{Field: "SUBID", Row: option.Raw}
	}
	index, err := parseIndex(option.Get("INDEX"))
	if err != nil {
		return Choice{}, &MalformedRowError{Field: "INDEX", Row: option.Raw}
	}
	return Choice{
		id:        id.String(),
		text:      option.Get("OPTION").String(),
		isDefault: option.Get("CHECKED").Bool(),
		index:     index,
	}, nil
}

// the remote sends ordinals both as numbers and as numeric strings
func parseIndex(value gjson.Result) (int, error) {
	switch value.Type {
	case gjson.Number:
		return int(value.Int()), nil
	case gjson.String:
		return strconv.Atoi(value.Str)
	}
	return 0, fmt.Errorf("not an index: %s", value.Raw)
}

func (c Choice) ID() string {
	return c.id
}

func (c Choice) Text() string {
	return c.text
}

func (c Choice) IsDefault() bool {
	return c.isDefault
}

func (c Choice) Index() int {
	return c.index
}

func (c Choice) Equal(other Choice) bool {
	return c.id == other.id
}

func (c Choice) String() string {
	return c.text
}

func (c Choice) GoString() string {
	return fmt.Sprintf("<%s: %s>", c.id, c.text)
}

package action

import (
	"net/http"
	"strings"
)

// Action is the command class of a request: administrative, write, or read.
type Action int

const (
	Read Action = iota
	Write
	Admin
)

func (a Action) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Classifier categorizes a request path and HTTP verb into an Action using
// a command vocabulary and the site-wide strict-mode flag.
type Classifier struct {
	vocab  *Vocabulary
	strict bool
}

// NewClassifier creates a Classifier. A nil vocabulary selects the built-in
// command names.
func NewClassifier(vocab *Vocabulary, strict bool) *Classifier {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Classifier{vocab: vocab, strict: strict}
}

// Classify returns the request's command class. Administrative wins over
// write: an administrative command always demands the highest permission
// level regardless of the verb that carries it.
func (c *Classifier) Classify(path, method string) Action {
	if c.IsAdmin(path) {
		return Admin
	}
	if c.IsWrite(path, method) {
		return Write
	}
	return Read
}

// IsAdmin reports whether the path carries an administrative command.
func (c *Classifier) IsAdmin(path string) bool {
	return pathHasCommand(path, c.vocab.Admin)
}

// IsWrite reports whether the request mutates data: a mutating verb
// (DELETE/PUT), a POST whose path carries no read command, or a path
// carrying an explicit write command.
func (c *Classifier) IsWrite(path, method string) bool {
	if method == http.MethodDelete || method == http.MethodPut {
		return true
	}
	if method == http.MethodPost && !pathHasCommand(path, c.vocab.read(c.strict)) {
		return true
	}
	return pathHasCommand(path, c.vocab.write(c.strict))
}

// IsRead reports whether the request is neither administrative nor a write.
func (c *Classifier) IsRead(path, method string) bool {
	return !c.IsWrite(path, method) && !c.IsAdmin(path)
}

// CommandsUsedAsName returns the vocabulary commands that appear in the
// path as an index or type name (an inner path segment followed by more
// segments). Such names invite misclassification and deserve a warning.
func (c *Classifier) CommandsUsedAsName(path string) []string {
	var conflicts []string
	all := [][]string{c.vocab.Admin, c.vocab.read(c.strict), c.vocab.write(c.strict)}
	for _, commands := range all {
		for _, cmd := range commands {
			if strings.Contains(path, "/"+cmd+"/") {
				conflicts = append(conflicts, cmd)
			}
		}
	}
	return conflicts
}

// pathHasCommand reports whether any command appears in the path as a
// complete path segment. Segment-bounded matching keeps "/_searchable"
// from counting as "_search".
func pathHasCommand(path string, commands []string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, segment := range strings.Split(path, "/") {
		for _, cmd := range commands {
			if segment == cmd {
				return true
			}
		}
	}
	return false
}

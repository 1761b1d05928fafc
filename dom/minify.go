package dom

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &minhtml.Minifier{KeepComments: true, KeepEndTags: true})
	})
	return minifier
}

// Minified renders the document like HTML and strips insignificant
// whitespace. Placeholder comments are kept so a snapshot can be hydrated.
func (d *Document) Minified() (string, error) {
	out, err := getMinifier().String("text/html", d.HTML())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

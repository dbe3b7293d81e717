// Package renderer defines the output backend contract. A renderer takes
// a computed layout result and produces the bytes of a finished document.
package renderer

import "github.com/havenlog/havenlog/layout"

type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}

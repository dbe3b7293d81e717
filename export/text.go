package export

import (
	"fmt"
	"strings"

	"github.com/havenlog/havenlog/doc"
)

// Text renders blocks as flat Markdown. The block order matches the paged
// output exactly; only the presentation differs.
func Text(blocks []doc.Block) []byte {
	var sb strings.Builder
	for i, b := range blocks {
		switch v := b.(type) {
		case doc.Heading:
			sb.WriteString("# " + v.Text + "\n\n")
		case doc.Paragraph:
			sb.WriteString(v.Text + "\n\n")
		case doc.ListItem:
			sb.WriteString("- " + v.Text + "\n")
			if !nextIsList(blocks, i) {
				sb.WriteString("\n")
			}
		case doc.Image:
			if v.Caption != "" {
				sb.WriteString(fmt.Sprintf("- Image: _%s_\n", v.Caption))
			} else {
				sb.WriteString("- Image attachment\n")
			}
			if !nextIsList(blocks, i) {
				sb.WriteString("\n")
			}
		case doc.AudioEvidence:
			sb.WriteString("- Audio: " + v.Name)
			if v.LinkURL != "" {
				sb.WriteString(" (" + v.LinkURL + ")")
			}
			sb.WriteString("\n")
			for _, line := range v.Transcript {
				sb.WriteString("  > " + line + "\n")
			}
			if !nextIsList(blocks, i) {
				sb.WriteString("\n")
			}
		}
	}
	return []byte(strings.TrimRight(sb.String(), "\n") + "\n")
}

func nextIsList(blocks []doc.Block, i int) bool {
	if i+1 >= len(blocks) {
		return false
	}
	switch blocks[i+1].(type) {
	case doc.ListItem, doc.Image, doc.AudioEvidence:
		return true
	}
	return false
}

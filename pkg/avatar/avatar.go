package avatar

import (
	"fmt"
	"strings"
)

const DefaultTemplate = "https://i.pravatar.cc/100?u=%d"

// URL returns the avatar for a post. The same id always yields the same URL.
// Templates without a %d verb get the id appended.
func URL(template string, id int64) string {
	if template == "" {
		template = DefaultTemplate
	}
	if !strings.Contains(template, "%d") {
		return fmt.Sprintf("%s%d", template, id)
	}
	return fmt.Sprintf(template, id)
}

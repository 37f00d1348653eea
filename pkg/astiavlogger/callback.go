package astiavlogger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/ccalmels/opengl-player/pkg/decoder/libav"
	logger "github.com/facebookincubator/go-belt/tool/logger/types"
	"github.com/iancoleman/strcase"
)

// FieldClass is the log field carrying the libav class chain of a message.
const FieldClass = "av_class"

// Callback returns a libav log callback forwarding the messages to l.
func Callback(l logger.Logger) astiav.LogCallback {
	var locker sync.Mutex
	return func(c astiav.Classer, level astiav.LogLevel, format, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}
		locker.Lock()
		defer locker.Unlock()
		entryLogger := l
		if chain := ClassChain(c); chain != "" {
			entryLogger = entryLogger.WithField(FieldClass, chain)
		}
		entryLogger.Logf(libav.LogLevelFromAstiav(level), "%s", msg)
	}
}

// ClassChain describes the class of c and all its parents, innermost first.
func ClassChain(c astiav.Classer) string {
	if c == nil {
		return ""
	}
	var chain []string
	for cl := c.Class(); cl != nil; cl = cl.Parent() {
		chain = append(chain, fmt.Sprintf(
			"[%s]%s:%s",
			strcase.ToSnake(ClassCategoryToString(cl.Category())),
			cl.Name(),
			cl.ItemName(),
		))
	}
	return strings.Join(chain, "->")
}

package notify

import (
	"fmt"

	"github.com/mssola/useragent"
)

// BotClassifier reports whether a user-agent string belongs to a known
// bot. Implementations may fail; callers treat a failure as "not a bot".
type BotClassifier func(rawUA string) (bool, error)

// ClassifyBot is the default classifier.
func ClassifyBot(rawUA string) (isBot bool, err error) {
	// A malformed agent string may panic the parser; surface that as a
	// classification failure.
	defer func() {
		if r := recover(); r != nil {
			isBot = false
			err = fmt.Errorf("user agent parse panic: %v", r)
		}
	}()
	ua := useragent.New(rawUA)
	return ua.Bot(), nil
}

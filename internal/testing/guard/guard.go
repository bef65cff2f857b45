package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PALAVER_TEST_MODE") == "" {
			_ = os.Setenv("PALAVER_TEST_MODE", "1")
		}
	})
}

package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SAMUDRA_TEST_MODE") == "" {
			_ = os.Setenv("SAMUDRA_TEST_MODE", "1")
		}
	})
}

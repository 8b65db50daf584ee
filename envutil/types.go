package envutil

import "os"

// lookupEnv is swapped in tests that need a fake environment.
var lookupEnv = os.LookupEnv //nolint:gochecknoglobals

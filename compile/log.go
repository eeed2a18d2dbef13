// Copyright (C) 2022 The OCANNL Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package compile

import (
	"log"
	"os"
)

// logger is the package-level sink for debug-level diagnostics:
// Non_local placement warnings and a per-compilation summary line (spec
// section 6, "a log-level variable... controls debug verbosity; it
// has no effect on outputs").
var logger = log.New(os.Stderr, "ocannl: ", log.LstdFlags)

// debugEnabled gates logger output behind OCANNL_LOG_LEVEL=debug, read
// once per call rather than cached, since tests toggle it via
// t.Setenv.
func debugEnabled() bool {
	return os.Getenv("OCANNL_LOG_LEVEL") == "debug"
}

func debugf(format string, args ...interface{}) {
	if debugEnabled() {
		logger.Printf(format, args...)
	}
}

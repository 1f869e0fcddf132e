// Package all registers every corpus format. Import it for its side effect:
//
//	import _ "github.com/FocuswithJustin/versecorpus/internal/formats/all"
package all

import (
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/biblebook"
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/flat"
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/html"
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/json"
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/sqlite"
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/txt"
	_ "github.com/FocuswithJustin/versecorpus/internal/formats/xml"
)

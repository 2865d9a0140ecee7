// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import "github.com/ScriptRock/pdfwriter/internal/types"

// Objects held by a Document. See types.Object for the set of Go types
// that may appear in an object graph.
type (
	Object    = types.Object
	Name      = types.Name
	Dict      = types.Dict
	Array     = types.Array
	HexString = types.HexString
	Stream    = types.Stream
	Reference = types.Objptr
)

// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing utilities.
//
// Both the fabfile and the config loader follow the same flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with the schema's root definition
//  3. Validate and decode to a Go struct
//
// # Usage
//
//	//go:embed fabfile_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Fabfile](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Fabfile",
//	    cueutil.WithFilename("fabfile.cue"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes the CUE path for debugging
//	}
//	return result.Value, nil
package cueutil

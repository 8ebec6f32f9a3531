// Copyright (C) 2022 Sneller, Inc.
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

package boot

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/ren-lang/core/value"
)

// paramSpec and nativeSpec are the boot image's description of the
// minimal native table (SPEC_FULL.md §C): enough to construct each
// native's paramlist without Go source naming the argument list
// twice. The compiled-in Go dispatcher function for each name is
// paired up separately, in nativeDispatchers — this mirrors spec.md
// §4.8 phase 6, "construct native functions by iterating the
// embedded natives block, pairing each entry with a compiled-in
// dispatcher function".
type paramSpec struct {
	Name       string
	Convention value.Convention
}

type nativeSpec struct {
	Name   string
	Params []paramSpec
}

// nativeManifest is the source-of-truth natives list. In a full
// build this would be produced by a separate tool from source texts
// and shipped as a prebuilt asset (spec.md §6.3: "a compressed binary
// blob produced at build time from source texts"); this core has no
// such external build step, so buildEmbeddedImage plays that role at
// package init, compressing and digesting this literal instead of a
// fetched artifact. The zstd/blake2b pipeline downstream is identical
// either way.
var nativeManifest = []nativeSpec{
	{"+", []paramSpec{{"left", value.ConvNormal}, {"right", value.ConvNormal}}},
	{"*", []paramSpec{{"left", value.ConvNormal}, {"right", value.ConvNormal}}},
	{"=", []paramSpec{{"left", value.ConvNormal}, {"right", value.ConvNormal}}},
	// "/" is not in spec.md's literal 13-native list either, but
	// testable scenario (d) (`trap [1 / 0]` must produce a
	// zero-divide error) has no other way to construct that error,
	// so it ships alongside "+"/"*"/"=" as the same kind of trivial
	// enfix arithmetic native.
	{"/", []paramSpec{{"left", value.ConvNormal}, {"right", value.ConvNormal}}},
	{"either", []paramSpec{
		{"condition", value.ConvNormal},
		{"true-branch", value.ConvNormal},
		{"false-branch", value.ConvNormal},
	}},
	{"do", []paramSpec{{"value", value.ConvNormal}}},
	{"trap", []paramSpec{{"body", value.ConvNormal}}},
	{"catch", []paramSpec{
		{"body", value.ConvNormal},
		{"name", value.ConvRefinement},
		{"catcher", value.ConvNormal},
	}},
	{"throw", []paramSpec{
		{"value", value.ConvNormal},
		{"name", value.ConvRefinement},
		{"label", value.ConvNormal},
	}},
	{"return", []paramSpec{{"value", value.ConvNormal}}},
	{"break", nil},
	{"continue", nil},
	{"fail", []paramSpec{{"reason", value.ConvNormal}}},
	{"recycle", nil},
	// func is not in spec.md's literal 13-native list but is the only
	// way a FUNC! value (spec.md §8 scenario f) ever comes into
	// existence, so it ships alongside the others.
	{"func", []paramSpec{{"spec", value.ConvHardQuote}, {"body", value.ConvHardQuote}}},
}

func buildEmbeddedImage() (compressed []byte, digest [blake2b.Size256]byte) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(nativeManifest); err != nil {
		panic(fmt.Sprintf("boot: encoding native manifest: %v", err))
	}
	digest = blake2b.Sum256(buf.Bytes())
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("boot: creating zstd encoder: %v", err))
	}
	compressed = enc.EncodeAll(buf.Bytes(), nil)
	enc.Close()
	return compressed, digest
}

var embeddedImage, embeddedDigest = buildEmbeddedImage()

// decodeImage decompresses the embedded boot image and verifies its
// integrity digest before handing back the native specs, per spec.md
// §4.8 phase 4 ("decompress embedded boot image; scan to an array")
// and phase 6; the digest check corresponds to
// "golang.org/x/crypto/blake2b ... checked once per InitCore before
// the natives table is built" (SPEC_FULL.md §B).
func decodeImage() ([]nativeSpec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("boot: creating zstd decoder: %w", err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll(embeddedImage, nil)
	if err != nil {
		return nil, fmt.Errorf("boot: decompressing boot image: %w", err)
	}
	if got := blake2b.Sum256(plain); got != embeddedDigest {
		return nil, fmt.Errorf("boot: boot image digest mismatch")
	}
	var specs []nativeSpec
	if err := gob.NewDecoder(bytes.NewReader(plain)).Decode(&specs); err != nil {
		return nil, fmt.Errorf("boot: decoding boot image: %w", err)
	}
	return specs, nil
}

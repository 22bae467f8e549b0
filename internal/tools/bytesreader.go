package tools

import "bytes"

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func bytesReaderAt(b []byte) *bytes.Reader { return bytes.NewReader(b) }

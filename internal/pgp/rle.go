package pgp

// RLE encodes a raster line as (count, value) pairs. It reports false when the
// line is not exactly LineBytes wide.
func RLE(line []byte) ([]byte, bool) {
	if len(line) != LineBytes {
		return nil, false
	}
	out := make([]byte, 0, 2*LineBytes)
	for i := 0; i < len(line); {
		v := line[i]
		n := 1
		for i+n < len(line) && line[i+n] == v && n < 0xFF {
			n++
		}
		out = append(out, byte(n), v)
		i += n
	}
	return out, true
}

// ExpandRLE decodes (count, value) pairs back into a raster line.
func ExpandRLE(pairs []byte) ([]byte, error) {
	if len(pairs)%2 != 0 {
		return nil, contractf("rle", "odd pair stream of %d bytes", len(pairs))
	}
	out := make([]byte, 0, LineBytes)
	for i := 0; i < len(pairs); i += 2 {
		n := int(pairs[i])
		if n == 0 {
			return nil, contractf("rle", "zero-length run at pair %d", i/2)
		}
		if len(out)+n > LineBytes {
			return nil, contractf("rle", "runs expand past %d bytes", LineBytes)
		}
		for j := 0; j < n; j++ {
			out = append(out, pairs[i+1])
		}
	}
	if len(out) != LineBytes {
		return nil, contractf("rle", "runs expand to %d bytes, want %d", len(out), LineBytes)
	}
	return out, nil
}

// RawLineRLE picks the cheaper encoding for a line: compressed when the pairs
// are shorter than RLEThreshold, raw otherwise. Both are equivalent to the
// device.
func RawLineRLE(line []byte) (Frame, error) {
	pairs, ok := RLE(line)
	if !ok {
		return Frame{}, contractf("line", "raster line is %d bytes, want %d", len(line), LineBytes)
	}
	if len(pairs) < RLEThreshold {
		return frame(CmdLineRLE, pairs), nil
	}
	return NewFrame(CmdLineRaw, line)
}

// LinePixels returns the raster line carried by a LINE_RAW or LINE_RLE frame.
func LinePixels(f Frame) ([]byte, error) {
	switch f.cmd {
	case CmdLineRaw:
		if len(f.payload) != LineBytes {
			return nil, contractf("line", "raw payload is %d bytes", len(f.payload))
		}
		out := make([]byte, LineBytes)
		copy(out, f.payload)
		return out, nil
	case CmdLineRLE:
		return ExpandRLE(f.payload)
	}
	return nil, contractf("line", "%s is not a raster line", f.cmd)
}

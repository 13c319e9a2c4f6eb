// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rsbus

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomBusByte returns any byte except the Pentair preamble bytes 0xFF
// and 0xA5, which would legitimately restart the decoder mid-frame
func randomBusByte(rng *rand.Rand) byte {
	for {
		b := byte(rng.Intn(256))
		if b != PP1 && b != PP4 {
			return b
		}
	}
}

// ============================================================
// Round Trip Fuzz Tests
// ============================================================

func TestFuzz_JandyRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		body := make([]byte, 2+rng.Intn(60))
		for j := range body {
			body[j] = randomBusByte(rng)
		}
		mode := NulLeading
		if rng.Intn(2) == 1 {
			mode = NulTrailing
		}

		wire, err := EncodeJandy(body, mode)
		if err != nil {
			t.Fatalf("Round %d: EncodeJandy failed: %v", i, err)
		}
		frames, errs := decodeAll(wire)
		if len(errs) != 0 || len(frames) != 1 {
			t.Fatalf("Round %d: body %x: got %d frames, errors %v", i, body, len(frames), errs)
		}
		f := frames[0]
		if f.Dest() != body[0] || f.Command() != body[1] {
			t.Fatalf("Round %d: header mismatch %x", i, f.Raw())
		}
		if len(body) > 2 && !bytes.Equal(f.Payload(), body[2:]) {
			t.Fatalf("Round %d: payload mismatch: expected %x, got %x", i, body[2:], f.Payload())
		}
	}
}

func TestFuzz_PentairRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		body := make([]byte, 5+rng.Intn(40))
		for j := range body {
			body[j] = randomBusByte(rng)
		}

		wire, err := EncodePentair(body)
		if err != nil {
			t.Fatalf("Round %d: EncodePentair failed: %v", i, err)
		}
		frames, errs := decodeAll(wire)
		if len(errs) != 0 || len(frames) != 1 {
			t.Fatalf("Round %d: body %x: got %d frames, errors %v", i, body, len(frames), errs)
		}
		f := frames[0]
		if !f.IsPentair() || f.Dest() != body[1] || f.Source() != body[2] || f.Command() != body[3] {
			t.Fatalf("Round %d: header mismatch %x", i, f.Raw())
		}
		if !bytes.Equal(f.Payload(), body[5:]) {
			t.Fatalf("Round %d: payload mismatch: expected %x, got %x", i, body[5:], f.Payload())
		}
	}
}

// ============================================================
// Robustness Fuzz Tests
// ============================================================

func TestFuzz_DecoderGarbage(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	d := NewDecoder()

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(512))
		rng.Read(data)
		for _, b := range data {
			f, err := d.DecodeByte(b)
			if f != nil && f.Len() < MinFrameSize {
				t.Fatalf("Round %d: decoder emitted short frame %x", i, f.Raw())
			}
			if err != nil {
				if _, ok := err.(*FrameError); !ok {
					t.Fatalf("Round %d: unexpected error type %T", i, err)
				}
			}
		}
	}
}

func TestFuzz_FrameAfterGarbage(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		garbage := make([]byte, rng.Intn(200))
		rng.Read(garbage)

		d := NewDecoder()
		for _, b := range garbage {
			d.DecodeByte(b)
		}
		d.Reset()

		var got *Frame
		for _, b := range append([]byte{0x00}, probeFrame...) {
			if f, _ := d.DecodeByte(b); f != nil {
				got = f
			}
		}
		if got == nil || got.Command() != CmdProbe {
			t.Fatalf("Round %d: probe not decoded after reset", i)
		}
	}
}

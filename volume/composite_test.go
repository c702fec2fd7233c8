package volume

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/achilleasa/go-volrender/field"
	"github.com/achilleasa/go-volrender/types"
)

func approx(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}

func TestCompositeClosedForm(t *testing.T) {
	c, err := NewCompositor(StandardDensity, nil)
	if err != nil {
		t.Fatal(err)
	}

	color, weights, norm, err := c.Composite(
		[]float32{0, 0.1},
		[]types.Vec3{{1, 0, 0}, {0, 1, 0}},
		[]float32{1, 0},
		1,
	)
	if err != nil {
		t.Fatal(err)
	}

	expAlpha := float32(1 - math.Exp(-0.1))
	if !approx(weights[0], expAlpha, 1e-6) || !approx(expAlpha, 0.0952, 1e-4) {
		t.Fatalf("expected w0 = %f; got %f", expAlpha, weights[0])
	}
	if weights[1] != 0 {
		t.Fatalf("expected w1 = 0; got %f", weights[1])
	}
	if !color.ApproxEqual(types.XYZ(expAlpha, 0, 0), 1e-6) {
		t.Fatalf("expected color (%f, 0, 0); got %v", expAlpha, color)
	}
	if !approx(norm, expAlpha, 1e-6) {
		t.Fatalf("expected normalization %f; got %f", expAlpha, norm)
	}
}

func TestCompositeWeightConservation(t *testing.T) {
	c, _ := NewCompositor(StandardDensity, nil)
	rng := rand.New(rand.NewSource(3))

	for iter := 0; iter < 100; iter++ {
		n := 1 + rng.Intn(64)
		depths, _ := Stratified(0, 4, n, rng)
		rgb := make([]types.Vec3, n)
		sigma := make([]float32, n)
		for i := range sigma {
			sigma[i] = rng.Float32() * 10
			rgb[i] = types.XYZ(rng.Float32(), rng.Float32(), rng.Float32())
		}

		_, weights, norm, err := c.Composite(depths, rgb, sigma, 1)
		if err != nil {
			t.Fatal(err)
		}
		var sum float32
		for _, w := range weights {
			if w < 0 {
				t.Fatalf("negative weight %f", w)
			}
			sum += w
		}
		if norm < 0 || norm > 1+1e-6 {
			t.Fatalf("expected normalization in [0, 1]; got %f", norm)
		}
		if !approx(sum, norm, 1e-5) {
			t.Fatalf("expected normalization %f to equal the weight sum %f", norm, sum)
		}
	}
}

func TestCompositeOpaqueLimit(t *testing.T) {
	c, _ := NewCompositor(StandardDensity, nil)
	color, weights, norm, err := c.Composite(
		[]float32{0, 0.5, 1},
		[]types.Vec3{{0, 0, 1}, {1, 1, 1}, {1, 1, 1}},
		[]float32{1e6, 3, 3},
		1,
	)
	if err != nil {
		t.Fatal(err)
	}
	if norm != 1 || weights[0] != 1 {
		t.Fatalf("expected the first sample to absorb the ray; got weights %v", weights)
	}
	if color != types.XYZ(0, 0, 1) {
		t.Fatalf("expected blue; got %v", color)
	}

	// A lone sample with positive density terminates the ray through the
	// unbounded last interval.
	_, _, norm, _ = c.Composite([]float32{0.3}, []types.Vec3{{1, 1, 1}}, []float32{0.01}, 1)
	if norm != 1 {
		t.Fatalf("expected last interval to terminate the ray; got %f", norm)
	}
}

func TestCompositeDirNorm(t *testing.T) {
	c, _ := NewCompositor(StandardDensity, nil)
	depths := []float32{0, 0.2, 0.4}
	rgb := []types.Vec3{{1, 1, 1}, {1, 1, 1}, {0, 0, 0}}

	_, w1, _, _ := c.Composite(depths, rgb, []float32{2, 2, 0}, 1)
	_, w2, _, _ := c.Composite(depths, rgb, []float32{1, 1, 0}, 2)
	for i := range w1 {
		if !approx(w1[i], w2[i], 1e-6) {
			t.Fatalf("expected doubling dirNorm to match doubling density at %d: %f vs %f", i, w1[i], w2[i])
		}
	}
}

func TestCompositeSignedDistance(t *testing.T) {
	if _, err := NewCompositor(SignedDistanceDensity, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without a variance model; got %v", err)
	}

	c, err := NewCompositor(SignedDistanceDensity, field.FixedInvStd(200))
	if err != nil {
		t.Fatal(err)
	}

	// A surface crossing between the 3rd and 4th sample.
	depths := []float32{0, 0.1, 0.2, 0.3, 0.4}
	dist := []float32{0.25, 0.15, 0.05, -0.05, -0.15}
	rgb := []types.Vec3{{1, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0, 0, 1}}

	color, weights, norm, err := c.Composite(depths, rgb, dist, 1)
	if err != nil {
		t.Fatal(err)
	}
	if norm < 0.99 || norm > 1+1e-6 {
		t.Fatalf("expected an almost opaque surface; got normalization %f", norm)
	}
	if weights[2] < 0.9 {
		t.Fatalf("expected the sample before the crossing to dominate; got weights %v", weights)
	}
	if color[1] < 0.9 {
		t.Fatalf("expected a mostly green pixel; got %v", color)
	}

	// Moving away from the surface never produces opacity.
	_, weights, norm, _ = c.Composite([]float32{0, 1}, []types.Vec3{{1, 1, 1}, {1, 1, 1}}, []float32{0.1, 0.5}, 1)
	if norm != 0 || weights[0] != 0 || weights[1] != 0 {
		t.Fatalf("expected zero weights when distances grow; got %v", weights)
	}
}

func TestCompositeMaskedSkipsSamples(t *testing.T) {
	c, err := NewCompositor(SignedDistanceDensity, field.FixedInvStd(64))
	if err != nil {
		t.Fatal(err)
	}

	// Skipped samples carry a zero distance which would otherwise read as a
	// surface right after the last evaluated sample.
	depths := []float32{0, 0.1, 0.2, 0.3}
	dist := []float32{0.25, 0.2, 0, 0}
	rgb := []types.Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	evaluated := []bool{true, true, false, false}

	_, weights, norm, err := c.CompositeMasked(depths, rgb, dist, evaluated, 1)
	if err != nil {
		t.Fatal(err)
	}
	if norm > 1e-3 {
		t.Fatalf("expected skipped samples to add no opacity; got normalization %f (weights %v)", norm, weights)
	}
	if weights[2] != 0 || weights[3] != 0 {
		t.Fatalf("expected zero weights for skipped samples; got %v", weights)
	}

	// A single evaluated sample between skipped ones is transparent.
	_, _, norm, _ = c.CompositeMasked(depths, rgb, []float32{0, 0.05, 0, 0}, []bool{false, true, false, false}, 1)
	if norm != 0 {
		t.Fatalf("expected an isolated sample to stay transparent; got %f", norm)
	}

	std, _ := NewCompositor(StandardDensity, nil)
	_, weights, _, _ = std.CompositeMasked(depths, rgb, []float32{0, 0, 5, 5}, evaluated, 1)
	if weights[2] != 0 || weights[3] != 0 {
		t.Fatalf("expected skipped densities to be ignored; got %v", weights)
	}

	if _, _, _, err = c.CompositeMasked(depths, rgb, dist, evaluated[:2], 1); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for a short mask; got %v", err)
	}
}

func TestCompositeShapeMismatch(t *testing.T) {
	c, _ := NewCompositor(StandardDensity, nil)
	if _, _, _, err := c.Composite([]float32{0, 1}, []types.Vec3{{}}, []float32{0, 1}, 1); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch; got %v", err)
	}
}

func TestParseDensityMode(t *testing.T) {
	for _, mode := range []DensityMode{StandardDensity, SignedDistanceDensity} {
		got, err := ParseDensityMode(mode.String())
		if err != nil || got != mode {
			t.Fatalf("expected %s to parse back; got %s, %v", mode, got, err)
		}
	}
	if _, err := ParseDensityMode("fog"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration; got %v", err)
	}
}

func TestCompositorEvidence(t *testing.T) {
	std, _ := NewCompositor(StandardDensity, nil)
	if got := std.Evidence(3.5); got != 3.5 {
		t.Fatalf("expected densities to pass through; got %f", got)
	}

	sdf, _ := NewCompositor(SignedDistanceDensity, field.FixedInvStd(64))
	specs := []struct {
		dist float32
		exp  float32
	}{
		{0, 16},
		{2, 0},
		{-2, 0},
	}
	for index, s := range specs {
		if got := sdf.Evidence(s.dist); !approx(got, s.exp, 1e-4) {
			t.Fatalf("[spec %d] expected evidence %f for distance %f; got %f", index, s.exp, s.dist, got)
		}
	}
	if sdf.Evidence(0.01) >= sdf.Evidence(0) {
		t.Fatal("expected evidence to peak on the surface")
	}
}

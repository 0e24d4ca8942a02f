package mathutil

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestClamp(t *testing.T) {
	is := is.New(t)
	is.Equal(Clamp(5, 1, 10), 5)
	is.Equal(Clamp(-3, 1, 10), 1)
	is.Equal(Clamp(42, 1, 10), 10)
	is.Equal(Clamp(3*time.Second, time.Millisecond, time.Second), time.Second)
	is.Equal(Clamp(7, 9, 2), 9)
}

func TestMinMax(t *testing.T) {
	is := is.New(t)
	is.Equal(Min(3, 4), 3)
	is.Equal(Max(3, 4), 4)
	is.Equal(Min("b", "a"), "a")
}

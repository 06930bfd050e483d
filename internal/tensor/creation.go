package tensor

import (
	"math"
	"math/rand"
)

// Zeros allocates a tensor filled with the zero value of T.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var zero T
	raw, err := NewRaw(shape, inferDataType(zero), b.Device())
	if err != nil {
		panic(err)
	}
	return New[T, B](raw, b)
}

// Ones allocates a tensor filled with one (true for bool).
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, oneValue[T](), b)
}

// Full allocates a tensor with every element set to value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Rand fills a tensor with uniform values in [0, 1). Float types only.
func Rand[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	switch data := any(t.Data()).(type) {
	case []float32:
		for i := range data {
			data[i] = rand.Float32()
		}
	case []float64:
		for i := range data {
			data[i] = rand.Float64()
		}
	default:
		panic("Rand only supports float32 and float64")
	}
	return t
}

// Randn fills a tensor with standard-normal values via the Box-Muller
// transform. Float types only. Uses math/rand so runs are reproducible
// under a fixed seed.
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	switch data := any(t.Data()).(type) {
	case []float32:
		for i := 0; i < len(data); i += 2 {
			z0, z1 := boxMuller()
			data[i] = float32(z0)
			if i+1 < len(data) {
				data[i+1] = float32(z1)
			}
		}
	case []float64:
		for i := 0; i < len(data); i += 2 {
			z0, z1 := boxMuller()
			data[i] = z0
			if i+1 < len(data) {
				data[i+1] = z1
			}
		}
	default:
		panic("Randn only supports float32 and float64")
	}
	return t
}

// Arange builds a 1D tensor [start, start+1, ..., end-1]. Numeric types only.
func Arange[T DType, B Backend](start, end T, b B) *Tensor[T, B] {
	n := arangeLen(start, end)
	if n <= 0 {
		panic("arange: end must be greater than start")
	}

	t := Zeros[T, B](Shape{n}, b)
	switch data := any(t.Data()).(type) {
	case []float32:
		s := any(start).(float32)
		for i := range data {
			data[i] = s + float32(i)
		}
	case []float64:
		s := any(start).(float64)
		for i := range data {
			data[i] = s + float64(i)
		}
	case []int32:
		s := any(start).(int32)
		for i := range data {
			data[i] = s + int32(i)
		}
	case []int64:
		s := any(start).(int64)
		for i := range data {
			data[i] = s + int64(i)
		}
	case []uint8:
		s := any(start).(uint8)
		for i := range data {
			data[i] = s + uint8(i)
		}
	default:
		panic("arange: unsupported element type")
	}
	return t
}

func boxMuller() (float64, float64) {
	u1 := rand.Float64()
	u2 := rand.Float64()
	r := math.Sqrt(-2.0 * math.Log(u1))
	return r * math.Cos(2.0*math.Pi*u2), r * math.Sin(2.0*math.Pi*u2)
}

func oneValue[T DType]() T {
	var zero T
	var one any
	switch any(zero).(type) {
	case float32:
		one = float32(1)
	case float64:
		one = float64(1)
	case int32:
		one = int32(1)
	case int64:
		one = int64(1)
	case uint8:
		one = uint8(1)
	case bool:
		one = true
	default:
		panic("unsupported element type")
	}
	return one.(T)
}

func arangeLen[T DType](start, end T) int {
	switch s := any(start).(type) {
	case float32:
		return int(any(end).(float32) - s)
	case float64:
		return int(any(end).(float64) - s)
	case int32:
		return int(any(end).(int32) - s)
	case int64:
		return int(any(end).(int64) - s)
	case uint8:
		return int(any(end).(uint8) - s)
	default:
		panic("arange: unsupported element type")
	}
}

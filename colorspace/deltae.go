package colorspace

import "math"

// ITPScale scales ICtCp differences so that 1 is roughly one just-noticeable difference
const ITPScale = 720.0

var pow25to7 = math.Pow(25, 7)

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func hueDegrees(b, a float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	h := math.Atan2(b, a) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}

// DeltaE2000 computes CIEDE2000 with kL = kC = kH = 1.
// The mean hue follows the published piecewise rule, including its
// discontinuity when the two hues are 180° apart.
func DeltaE2000(lab1, lab2 Vector3) float64 {
	L1, a1, b1 := lab1[0], lab1[1], lab1[2]
	L2, a2, b2 := lab2[0], lab2[1], lab2[2]

	C1 := math.Hypot(a1, b1)
	C2 := math.Hypot(a2, b2)
	meanC7 := math.Pow((C1+C2)/2, 7)
	G := 0.5 * (1 - math.Sqrt(meanC7/(meanC7+pow25to7)))

	a1p := (1 + G) * a1
	a2p := (1 + G) * a2
	C1p := math.Hypot(a1p, b1)
	C2p := math.Hypot(a2p, b2)
	h1p := hueDegrees(b1, a1p)
	h2p := hueDegrees(b2, a2p)

	dLp := L2 - L1
	dCp := C2p - C1p

	var dhp, meanHp float64
	switch {
	case C1p*C2p == 0:
		dhp = 0
		meanHp = h1p + h2p
	default:
		dhp = h2p - h1p
		if dhp > 180 {
			dhp -= 360
		} else if dhp < -180 {
			dhp += 360
		}

		switch {
		case math.Abs(h1p-h2p) <= 180:
			meanHp = (h1p + h2p) / 2
		case h1p+h2p < 360:
			meanHp = (h1p + h2p + 360) / 2
		default:
			meanHp = (h1p + h2p - 360) / 2
		}
	}
	dHp := 2 * math.Sqrt(C1p*C2p) * math.Sin(radians(dhp/2))

	meanLp := (L1 + L2) / 2
	meanCp := (C1p + C2p) / 2

	T := 1 - 0.17*math.Cos(radians(meanHp-30)) +
		0.24*math.Cos(radians(2*meanHp)) +
		0.32*math.Cos(radians(3*meanHp+6)) -
		0.20*math.Cos(radians(4*meanHp-63))

	l50 := (meanLp - 50) * (meanLp - 50)
	SL := 1 + 0.015*l50/math.Sqrt(20+l50)
	SC := 1 + 0.045*meanCp
	SH := 1 + 0.015*meanCp*T

	dTheta := 30 * math.Exp(-((meanHp-275)/25)*((meanHp-275)/25))
	meanCp7 := math.Pow(meanCp, 7)
	RC := 2 * math.Sqrt(meanCp7/(meanCp7+pow25to7))
	RT := -math.Sin(radians(2*dTheta)) * RC

	tL := dLp / SL
	tC := dCp / SC
	tH := dHp / SH
	return math.Sqrt(tL*tL + tC*tC + tH*tH + RT*tC*tH)
}

// DeltaI is the intensity-only ITP difference
func DeltaI(ictcp1, ictcp2 Vector3) float64 {
	return ITPScale * math.Abs(ictcp1[0]-ictcp2[0])
}

// DeltaChromatic is the ITP difference in the T/P plane (T = Ct/2)
func DeltaChromatic(ictcp1, ictcp2 Vector3) float64 {
	dT := 0.5 * (ictcp1[1] - ictcp2[1])
	dP := ictcp1[2] - ictcp2[2]
	return ITPScale * math.Sqrt(dT*dT+dP*dP)
}

// DeltaEITP is the ITU-R BT.2124 colour difference
func DeltaEITP(ictcp1, ictcp2 Vector3) float64 {
	dI := ictcp1[0] - ictcp2[0]
	dT := 0.5 * (ictcp1[1] - ictcp2[1])
	dP := ictcp1[2] - ictcp2[2]
	return ITPScale * math.Sqrt(dI*dI+dT*dT+dP*dP)
}

package colorspace

import "math"

const labDelta = 6.0 / 29.0

func labF(t float64) float64 {
	if t > labDelta*labDelta*labDelta {
		return math.Cbrt(t)
	}
	return t/(3*labDelta*labDelta) + 4.0/29.0
}

func labFInv(t float64) float64 {
	if t > labDelta {
		return t * t * t
	}
	return 3 * labDelta * labDelta * (t - 4.0/29.0)
}

// XYZToLab converts xyz to CIE L*a*b* relative to the reference white
func XYZToLab(xyz, white Vector3) Vector3 {
	fx := labF(xyz[0] / white[0])
	fy := labF(xyz[1] / white[1])
	fz := labF(xyz[2] / white[2])
	return Vector3{
		116*fy - 16,
		500 * (fx - fy),
		200 * (fy - fz),
	}
}

// LabToXYZ is the inverse of XYZToLab
func LabToXYZ(lab, white Vector3) Vector3 {
	fy := (lab[0] + 16) / 116
	fx := fy + lab[1]/500
	fz := fy - lab[2]/200
	return Vector3{
		white[0] * labFInv(fx),
		white[1] * labFInv(fy),
		white[2] * labFInv(fz),
	}
}

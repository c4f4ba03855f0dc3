package colorspace

// ITU-R BT.2100 ICtCp (PQ variant)

var rgbToLMS = Matrix3x3{
	1688.0 / 4096, 2146.0 / 4096, 262.0 / 4096,
	683.0 / 4096, 2951.0 / 4096, 462.0 / 4096,
	99.0 / 4096, 309.0 / 4096, 3688.0 / 4096,
}

var lmsToICtCp = Matrix3x3{
	2048.0 / 4096, 2048.0 / 4096, 0,
	6610.0 / 4096, -13613.0 / 4096, 7003.0 / 4096,
	17933.0 / 4096, -17390.0 / 4096, -543.0 / 4096,
}

var (
	xyzToLMS    = rgbToLMS.Multiply(xyzToBT2020)
	lmsToXYZ    = bt2020ToXYZ.Multiply(mustInverse(rgbToLMS))
	ictcpToLMSp = mustInverse(lmsToICtCp)
)

// XYZToICtCp converts absolute XYZ (cd/m²) to ICtCp.
// Negative or NaN LMS components propagate as NaN.
func XYZToICtCp(xyz Vector3) Vector3 {
	lms := xyzToLMS.Apply(xyz)
	return lmsToICtCp.Apply(lms.Map(PQInverseEOTF))
}

// ICtCpToXYZ is the inverse of XYZToICtCp
func ICtCpToXYZ(ictcp Vector3) Vector3 {
	lmsp := ictcpToLMSp.Apply(ictcp)
	return lmsToXYZ.Apply(lmsp.Map(PQEOTF))
}

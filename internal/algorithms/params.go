package algorithms

import (
	"gocv.io/x/gocv"
)

func floatParam(params map[string]interface{}, key string, def float64) float64 {
	if val, ok := params[key]; ok {
		if v, ok := val.(float64); ok {
			return v
		}
	}
	return def
}

func intParam(params map[string]interface{}, key string, def int) int {
	return int(floatParam(params, key, float64(def)))
}

func boolParam(params map[string]interface{}, key string, def bool) bool {
	if val, ok := params[key]; ok {
		if v, ok := val.(bool); ok {
			return v
		}
	}
	return def
}

func stringParam(params map[string]interface{}, key string, def string) string {
	if val, ok := params[key]; ok {
		if v, ok := val.(string); ok {
			return v
		}
	}
	return def
}

// toBGR returns a 3-channel copy of img
func toBGR(img gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	switch img.Channels() {
	case 1:
		gocv.CvtColor(img, &out, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(img, &out, gocv.ColorBGRAToBGR)
	default:
		img.CopyTo(&out)
	}
	return out
}

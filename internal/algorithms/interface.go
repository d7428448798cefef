// Candidate region producers and their registry
package algorithms

import (
	"fmt"

	"gocv.io/x/gocv"

	"pixel-label-engine/internal/core"
)

// Mode tells the caller how a producer's candidate is meant to be committed
type Mode int

const (
	// ModeIncremental candidates hold 0/255 and are merged into the active class
	ModeIncremental Mode = iota
	// ModeReplace candidates hold class indices and replace the whole label set
	ModeReplace
)

// Producer turns a resolved ROI over an image into a candidate region
type Producer interface {
	Produce(img gocv.Mat, roi core.ROI, params map[string]interface{}) (core.Candidate, error)
	GetDefaultParams() map[string]interface{}
	GetName() string
	GetDescription() string
	Validate(params map[string]interface{}) error
	GetParameterInfo() []ParameterInfo
	Mode() Mode
}

// ParameterInfo describes a parameter for UI generation
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "int", "float", "bool", "string", "enum"
	Min         interface{} `json:"min,omitempty"`
	Max         interface{} `json:"max,omitempty"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
	Options     []string    `json:"options,omitempty"` // For enum type
}

var producers = make(map[string]Producer)

func Register(name string, producer Producer) {
	producers[name] = producer
}

func Get(name string) (Producer, bool) {
	producer, exists := producers[name]
	return producer, exists
}

func Produce(name string, img gocv.Mat, roi core.ROI, params map[string]interface{}) (core.Candidate, error) {
	producer, exists := producers[name]
	if !exists {
		return core.Candidate{}, fmt.Errorf("producer not found: %s", name)
	}

	return producer.Produce(img, roi, params)
}

func ValidateParameters(name string, params map[string]interface{}) error {
	producer, exists := producers[name]
	if !exists {
		return fmt.Errorf("producer not found: %s", name)
	}

	return producer.Validate(params)
}

func GetAllProducers() map[string]Producer {
	result := make(map[string]Producer)
	for name, producer := range producers {
		result[name] = producer
	}
	return result
}

func GetProducersByCategory() map[string][]string {
	return map[string][]string{
		"Selection": {
			"shape",
			"threshold",
		},
		"Segmentation": {
			"watershed",
			"grabcut",
		},
	}
}

func init() {
	Register("shape", NewShapeSelection())
	Register("threshold", NewColorThreshold())
	Register("watershed", NewWatershed())
	Register("grabcut", NewGrabCut())
}

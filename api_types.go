package main

// InitRequest is the payload for /api/init.
// Both fields are optional; omitted ones fall back to the reference run.
type InitRequest struct {
	Config  *Config  `json:"config"`
	Dataset *Dataset `json:"dataset"`
}

// InitResponse identifies the freshly built network.
type InitResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
	Params int    `json:"params"`
}

// TrainRequest controls how much work /api/train performs in one call.
//
// Steps defaults to 10 when omitted.
type TrainRequest struct {
	Steps int `json:"steps"`
}

// TrainResponse reports the last step of a /api/train call.
type TrainResponse struct {
	RunID string `json:"run_id"`
	StepReport
}

// PredictRequest carries raw feature rows for /api/predict.
type PredictRequest struct {
	Inputs [][]float64 `json:"inputs"`
}

// PredictResponse holds one network output per input row.
type PredictResponse struct {
	Outputs []float64 `json:"outputs"`
}

// ParamsResponse is returned by /api/params.
type ParamsResponse struct {
	RunID  string       `json:"run_id"`
	Steps  int          `json:"steps"`
	Params []ParamState `json:"params"`
}

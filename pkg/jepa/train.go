package jepa

import "fmt"

// TrainConfig mirrors the tunables the original offline trainer exposes
// through processing.state_layer.training in configuration.
type TrainConfig struct {
	LatentDim      int
	Epochs         int
	LearningRate   float64
	MaxSamples     int
	InitScale      float64
	WeightScale    int64
	Seed           string
	ProjectionSeed string
	Activation     Activation
	ErrorClip      float64
}

// DefaultTrainConfig returns the original trainer's defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		LatentDim:    64,
		Epochs:       3,
		LearningRate: 0.01,
		MaxSamples:   200,
		InitScale:    0.02,
		WeightScale:  1_000_000,
		Activation:   ActivationTanh,
		ErrorClip:    1.0,
	}
}

// TrainReport summarizes one training run for audit and for the
// persisted report.json artifact.
type TrainReport struct {
	ModelVersion  string   `json:"model_version"`
	TrainingRunID string   `json:"training_run_id"`
	ConfigHash    string   `json:"config_hash"`
	DatasetHash   string   `json:"dataset_hash"`
	CreatedTSMs   int64    `json:"created_ts_ms"`
	InputDim      int      `json:"input_dim"`
	LatentDim     int      `json:"latent_dim"`
	SamplesUsed   int      `json:"samples_used"`
	Epochs        int      `json:"epochs"`
	Steps         int      `json:"steps"`
	LearningRate  float64  `json:"learning_rate"`
	Activation    string   `json:"activation"`
	LossHistory   []float64 `json:"loss_history"`
	LossFinal     float64  `json:"loss_final"`
	LossMin       float64  `json:"loss_min"`
	LossMax       float64  `json:"loss_max"`
	Eval          map[string]any `json:"eval"`
}

// TrainModel fits an encoder/predictor pair on an ordered sequence of
// pooled feature vectors (one per state span, in ts_start_ms order) by
// minimizing next-latent prediction error, the same JEPA-style objective
// the original offline trainer uses: encode consecutive states, predict
// the next latent from the current one, backpropagate the residual into
// both matrices.
func TrainModel(features [][]float64, modelVersion, trainingRunID, configHash, datasetHash string, cfg TrainConfig, evalSummary map[string]any, createdTSMs int64) (*Model, *TrainReport, error) {
	if len(features) < 2 {
		return nil, nil, fmt.Errorf("jepa: training requires at least 2 feature vectors, got %d", len(features))
	}

	inputDim := len(features[0])
	latentDim := cfg.LatentDim
	if latentDim <= 0 {
		latentDim = 64
	}
	if latentDim > inputDim {
		latentDim = inputDim
	}
	if latentDim < 8 {
		latentDim = 8
		if inputDim < latentDim {
			latentDim = inputDim
		}
	}
	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = 3
	}
	if epochs > 10 {
		epochs = 10
	}
	lr := cfg.LearningRate
	if lr == 0 {
		lr = 0.01
	}
	maxSamples := cfg.MaxSamples
	if maxSamples <= 0 {
		maxSamples = 200
	}
	initScale := cfg.InitScale
	if initScale == 0 {
		initScale = 0.02
	}
	weightScale := cfg.WeightScale
	if weightScale <= 0 {
		weightScale = 1_000_000
	}
	seed := cfg.Seed
	if seed == "" {
		seed = configHash
	}
	if seed == "" {
		seed = "seed"
	}
	projectionSeed := cfg.ProjectionSeed
	if projectionSeed == "" {
		projectionSeed = modelVersion
	}
	if projectionSeed == "" {
		projectionSeed = configHash
	}
	activation := cfg.Activation
	if activation == "" {
		activation = ActivationTanh
	}
	clip := cfg.ErrorClip
	if clip == 0 {
		clip = 1.0
	}

	ordered := subsample(features, maxSamples)
	for i, vec := range ordered {
		ordered[i] = normalizeVec(ensureDim(vec, inputDim))
	}

	encoder := initMatrix(latentDim, inputDim, seed+":enc", initScale)
	predictor := initMatrix(latentDim, latentDim, seed+":pred", initScale)

	var lossHistory []float64
	totalSteps := 0

	for e := 0; e < epochs; e++ {
		var epochLoss float64
		var epochSteps int
		for idx := 0; idx < len(ordered)-1; idx++ {
			ft := ordered[idx]
			ftp1 := ordered[idx+1]

			htPre := matVec(encoder, ft)
			htp1Pre := matVec(encoder, ftp1)
			ht := activate(htPre, activation)
			htp1 := activate(htp1Pre, activation)

			predPre := matVec(predictor, ht)
			pred := activate(predPre, activation)

			errVec := make([]float64, latentDim)
			var stepLoss float64
			for i := 0; i < latentDim; i++ {
				errVec[i] = pred[i] - htp1[i]
				stepLoss += errVec[i] * errVec[i]
			}
			stepLoss /= float64(latentDim)
			epochLoss += stepLoss
			epochSteps++
			totalSteps++

			if clip > 0 {
				for i, v := range errVec {
					if v > clip {
						errVec[i] = clip
					} else if v < -clip {
						errVec[i] = -clip
					}
				}
			}

			predGradAct := activateGrad(predPre, activation)
			gradPred := make([]float64, latentDim)
			for i := range gradPred {
				gradPred[i] = 2 * errVec[i] * predGradAct[i]
			}
			back := matVecTranspose(predictor, gradPred)

			for i := 0; i < latentDim; i++ {
				row := predictor[i]
				for j := 0; j < latentDim; j++ {
					row[j] -= lr * gradPred[i] * ht[j]
				}
			}

			htGradAct := activateGrad(htPre, activation)
			htp1GradAct := activateGrad(htp1Pre, activation)
			for i := 0; i < latentDim; i++ {
				gradFromPred := back[i] * htGradAct[i]
				gradFromTp1 := -2 * errVec[i] * htp1GradAct[i]
				row := encoder[i]
				for j := 0; j < inputDim; j++ {
					row[j] -= lr * (gradFromPred*ft[j] + gradFromTp1*ftp1[j])
				}
			}
		}
		if epochSteps > 0 {
			lossHistory = append(lossHistory, epochLoss/float64(epochSteps))
		} else {
			lossHistory = append(lossHistory, 0)
		}
	}

	model := &Model{
		ModelVersion:   modelVersion,
		TrainingRunID:  trainingRunID,
		InputDim:       inputDim,
		LatentDim:      latentDim,
		Encoder:        encoder,
		Predictor:      predictor,
		ProjectionSeed: projectionSeed,
		WeightScale:    weightScale,
		ConfigHash:     configHash,
		DatasetHash:    datasetHash,
		CreatedTSMs:    createdTSMs,
		Activation:     activation,
		Eval:           evalSummary,
		SchemaVersion:  1,
	}
	model.quantize()

	report := &TrainReport{
		ModelVersion:  modelVersion,
		TrainingRunID: trainingRunID,
		ConfigHash:    configHash,
		DatasetHash:   datasetHash,
		CreatedTSMs:   createdTSMs,
		InputDim:      inputDim,
		LatentDim:     latentDim,
		SamplesUsed:   len(ordered),
		Epochs:        epochs,
		Steps:         totalSteps,
		LearningRate:  lr,
		Activation:    string(activation),
		LossHistory:   lossHistory,
		Eval:          evalSummary,
	}
	if len(lossHistory) > 0 {
		report.LossFinal = lossHistory[len(lossHistory)-1]
		report.LossMin, report.LossMax = lossHistory[0], lossHistory[0]
		for _, v := range lossHistory {
			if v < report.LossMin {
				report.LossMin = v
			}
			if v > report.LossMax {
				report.LossMax = v
			}
		}
	}
	return model, report, nil
}

func subsample(features [][]float64, maxSamples int) [][]float64 {
	if len(features) <= maxSamples {
		out := make([][]float64, len(features))
		copy(out, features)
		return out
	}
	step := len(features) / maxSamples
	if step < 1 {
		step = 1
	}
	var out [][]float64
	for i := 0; i < len(features) && len(out) < maxSamples; i += step {
		out = append(out, features[i])
	}
	return out
}

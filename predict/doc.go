// Package predict implements a small self-contained regression
// ensemble for scoring feature vectors in [0, 1].
//
// The ensemble combines linear regressors with shallow regression
// trees. Members are trained on bootstrap resamples and weighted by
// their inverse error on a holdout slice, so the better a member
// generalizes the more it contributes to the blended prediction.
//
// The package has no opinion about what the features mean. Callers are
// expected to extract fixed-length vectors themselves and keep the
// layout consistent between training and prediction.
//
// # Usage
//
//	e := predict.NewEnsemble(42)
//	e.Fit(samples)
//	score := e.Predict(features)
//
// An ensemble that has not seen enough samples stays untrained and
// predicts DefaultPrediction for every input.
package predict

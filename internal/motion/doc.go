// Package motion decides whether a camera frame shows significant movement.
//
// Each Detector keeps a per-pixel running Gaussian background model at a
// reduced analysis resolution. Sampled frames are converted to greyscale,
// compared against the model to produce a foreground mask, cleaned with a
// morphological open then close, and split into 8-connected components. A
// trigger needs at least one component above the sensitivity's minimum area
// and the cooldown since the previous trigger to have elapsed.
package motion

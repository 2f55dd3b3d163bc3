// Package analysis inspects the output series of finished coupled runs.
//
//   - [PowerSpectrum] and [DominantFrequency]: spectral content of one variable
//   - [CrossCorrelation]: lag between two exchanged variables
//   - [Summarize]: range and moments of a column
//   - [Portrait] and [PortraitToASCII]: one variable plotted against another
//
// Series are sampled at the coordinator's output times, which need not be
// uniform; spectral functions assume the mean sample interval.
package analysis

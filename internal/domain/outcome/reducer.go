package outcome

// ══════════════════════════════════════════════════════════════════════════════
// REDUCERS
// Чистые функции над журналом доказательств и уже сохранёнными достижениями.
// ══════════════════════════════════════════════════════════════════════════════

// MeanScore — среднее арифметическое score_percent по всем доказательствам.
// ok = false, если доказательств нет.
func MeanScore(evidence []Evidence) (mean float64, samples int, ok bool) {
	if len(evidence) == 0 {
		return 0, 0, false
	}
	var sum float64
	for _, e := range evidence {
		sum += e.ScorePercent
	}
	return sum / float64(len(evidence)), len(evidence), true
}

// Contribution — вклад одного источника в средневзвешенное уровнем выше.
// Attained = false, если у студента ещё нет достижения по источнику.
type Contribution struct {
	SourceID    string
	Weight      float64
	Percent     float64
	SampleCount int
	Attained    bool
}

// WeightedMean = Σ(percent·weight) / Σ(weight) по достигнутым источникам.
// Недостигнутые источники исключаются из обеих сумм, а не считаются нулём.
// samples — сумма SampleCount учтённых источников.
func WeightedMean(contributions []Contribution) (mean float64, samples int, ok bool) {
	var num, den float64
	for _, c := range contributions {
		if !c.Attained || c.Weight <= 0 {
			continue
		}
		num += c.Percent * c.Weight
		den += c.Weight
		samples += c.SampleCount
	}
	if den == 0 {
		return 0, 0, false
	}
	return num / den, samples, true
}

package algorithms

import (
	"math"
	"strings"
)

// JaroSimilarity вычисляет сходство Jaro между двумя строками
func JaroSimilarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)

	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	// Определяем окно совпадений
	matchWindow := max(len1, len2)/2 - 1
	if matchWindow < 0 {
		matchWindow = 0
	}

	// Находим совпадения
	matches1 := make([]bool, len1)
	matches2 := make([]bool, len2)
	matches := 0

	for i := 0; i < len1; i++ {
		start := max(0, i-matchWindow)
		end := min(len2, i+matchWindow+1)

		for j := start; j < end; j++ {
			if matches2[j] || r1[i] != r2[j] {
				continue
			}
			matches1[i] = true
			matches2[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Находим транспозиции
	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matches1[i] {
			continue
		}
		for !matches2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	jaro := (float64(matches)/float64(len1) +
		float64(matches)/float64(len2) +
		(float64(matches)-float64(transpositions)/2.0)/float64(matches)) / 3.0

	return jaro
}

// JaroWinklerSimilarity вычисляет сходство Jaro-Winkler
// Общий префикс повышает оценку — важно для названий специальностей,
// которые часто различаются только хвостом ("Cardiology" / "Cardiology (Invasive)")
func JaroWinklerSimilarity(s1, s2 string) float64 {
	jaro := JaroSimilarity(s1, s2)

	if jaro < 0.7 {
		return jaro
	}

	// Находим длину общего префикса (максимум 4)
	prefixLen := 0
	maxPrefix := 4
	r1, r2 := []rune(strings.ToLower(s1)), []rune(strings.ToLower(s2))
	minLen := min(len(r1), len(r2))

	for i := 0; i < minLen && i < maxPrefix; i++ {
		if r1[i] == r2[i] {
			prefixLen++
		} else {
			break
		}
	}

	// Коэффициент масштабирования (обычно 0.1)
	p := 0.1
	winkler := jaro + float64(prefixLen)*p*(1.0-jaro)

	return math.Min(winkler, 1.0)
}

// LCSSimilarity вычисляет сходство на основе наибольшей общей подпоследовательности
func LCSSimilarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	lcs := LongestCommonSubsequence(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))

	if maxLen == 0 {
		return 1.0
	}

	return float64(lcs) / float64(maxLen)
}

// LongestCommonSubsequence вычисляет длину наибольшей общей подпоследовательности
func LongestCommonSubsequence(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)

	if len1 == 0 || len2 == 0 {
		return 0
	}

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			if r1[i-1] == r2[j-1] {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix[len1][len2]
}

// NgramSimilarity вычисляет схожесть на основе символьных N-грамм
func NgramSimilarity(s1, s2 string, n int) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	ngrams1 := generateNgrams(s1, n)
	ngrams2 := generateNgrams(s2, n)

	if len(ngrams1) == 0 && len(ngrams2) == 0 {
		return 1.0
	}
	if len(ngrams1) == 0 || len(ngrams2) == 0 {
		return 0.0
	}

	// Вычисляем пересечение и объединение
	intersection := 0
	union := make(map[string]bool)

	for ngram := range ngrams1 {
		union[ngram] = true
		if ngrams2[ngram] {
			intersection++
		}
	}

	for ngram := range ngrams2 {
		union[ngram] = true
	}

	if len(union) == 0 {
		return 0.0
	}

	return float64(intersection) / float64(len(union))
}

// generateNgrams генерирует N-граммы из строки
func generateNgrams(text string, n int) map[string]bool {
	ngrams := make(map[string]bool)
	runes := []rune(text)

	if len(runes) < n {
		if len(runes) > 0 {
			ngrams[string(runes)] = true
		}
		return ngrams
	}

	for i := 0; i <= len(runes)-n; i++ {
		ngram := string(runes[i : i+n])
		ngrams[ngram] = true
	}

	return ngrams
}

// SimilarityWeights веса для различных алгоритмов схожести
type SimilarityWeights struct {
	JaroWinkler float64 `json:"jaro_winkler"` // Вес для Jaro-Winkler (0.0 - 1.0)
	LCS         float64 `json:"lcs"`          // Вес для LCS (0.0 - 1.0)
	Ngram       float64 `json:"ngram"`        // Вес для N-грамм (0.0 - 1.0)
	Token       float64 `json:"token"`        // Вес для токенного Жаккара со стеммингом (0.0 - 1.0)
}

// DefaultSimilarityWeights возвращает веса по умолчанию
func DefaultSimilarityWeights() *SimilarityWeights {
	return &SimilarityWeights{
		JaroWinkler: 0.35,
		LCS:         0.2,
		Ngram:       0.25,
		Token:       0.2,
	}
}

// NormalizeWeights нормализует веса так, чтобы их сумма была равна 1.0
func (sw *SimilarityWeights) NormalizeWeights() {
	total := sw.JaroWinkler + sw.LCS + sw.Ngram + sw.Token
	if total == 0 {
		return
	}
	sw.JaroWinkler /= total
	sw.LCS /= total
	sw.Ngram /= total
	sw.Token /= total
}

// HybridSimilarity вычисляет комбинированную схожесть используя несколько алгоритмов
// Комбинирует Jaro-Winkler, LCS, N-граммы и токенный Жаккар для более точного результата
func HybridSimilarity(s1, s2 string, weights *SimilarityWeights) float64 {
	if weights == nil {
		weights = DefaultSimilarityWeights()
	}

	var similarity float64

	// 1. Jaro-Winkler (хорош для опечаток и перестановок)
	if weights.JaroWinkler > 0 {
		jw := JaroWinklerSimilarity(s1, s2)
		similarity += jw * weights.JaroWinkler
	}

	// 2. LCS (хорош для общих подпоследовательностей)
	if weights.LCS > 0 {
		lcs := LCSSimilarity(s1, s2)
		similarity += lcs * weights.LCS
	}

	// 3. N-граммы (для частичных совпадений)
	if weights.Ngram > 0 {
		ngram := NgramSimilarity(s1, s2, 2) // bigram
		similarity += ngram * weights.Ngram
	}

	// 4. Токенный Жаккар со стеммингом (для перестановок слов: "General Pediatrics" / "Pediatrics, General")
	if weights.Token > 0 {
		token := TokenJaccardSimilarity(s1, s2)
		similarity += token * weights.Token
	}

	return math.Min(similarity, 1.0)
}

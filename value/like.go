package value

import "golang.org/x/text/cases"
import "golang.org/x/text/language"

// Like implements SQL LIKE pattern matching: '%' matches any run of
// characters (including none), '_' matches exactly one character, and
// escape (if non-zero) escapes the following '%', '_' or itself literally.
// Grounded on the engine's original pattern-matching contract; the
// case-insensitive variant below additionally folds case the Unicode-aware
// way rather than via byte-wise ASCII folding.
func Like(s, pattern string, escape byte) bool {
	return likeMatch([]rune(s), []rune(pattern), rune(escape))
}

// LikeFold is the case-insensitive counterpart of Like, folding both the
// subject and the pattern before matching.
func LikeFold(s, pattern string, escape byte) bool {
	folder := cases.Fold()
	return likeMatch([]rune(folder.String(s)), []rune(folder.String(pattern)), rune(escape))
}

var _ = language.Und // keep golang.org/x/text/language linked for cases.Fold's tables

func likeMatch(s, p []rune, escape rune) bool {
	// classic DP over (len(s)+1) x (len(p)+1); small patterns in practice.
	sl, pl := len(s), len(p)
	dp := make([][]bool, sl+1)
	for i := range dp {
		dp[i] = make([]bool, pl+1)
	}
	dp[0][0] = true
	for j := 1; j <= pl; j++ {
		if (p[j-1] == '%' || (escape != 0 && p[j-1] == escape)) && !isEscaped(p, j-1, escape) {
			dp[0][j] = dp[0][j-1]
		}
	}
	for i := 1; i <= sl; i++ {
		for j := 1; j <= pl; j++ {
			pc := p[j-1]
			escaped := isEscaped(p, j-1, escape)
			switch {
			case pc == '%' && !escaped:
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case pc == '_' && !escaped:
				dp[i][j] = dp[i-1][j-1]
			case escape != 0 && pc == escape && !escaped:
				// an unescaped escape rune consumes no subject character
				dp[i][j] = dp[i][j-1]
			default:
				dp[i][j] = dp[i-1][j-1] && s[i-1] == pc
			}
		}
	}
	return dp[sl][pl]
}

// isEscaped reports whether p[idx] is preceded by an (odd) escape rune.
func isEscaped(p []rune, idx int, escape rune) bool {
	if escape == 0 {
		return false
	}
	count := 0
	for k := idx - 1; k >= 0 && p[k] == escape; k-- {
		count++
	}
	return count%2 == 1
}

package commands

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/commandeer/internal/hooks"
	"github.com/keshon/commandeer/pkg/cmd"
)

const (
	maxDice  = 100
	maxSides = 1000
)

var (
	tokenRegex = regexp.MustCompile(`(?i)(\d*d\d+|\d+|[+\-*/])`)
	diceRegex  = regexp.MustCompile(`(?i)^(\d*)d(\d+)$`)
)

func Roll(d Deps) cmd.Descriptor {
	intn := d.Intn
	if intn == nil {
		intn = rand.IntN
	}
	return cmd.Descriptor{
		Name:        "roll",
		Description: "Roll dice with formulas like `2d6+1d4*2`",
		Category:    categoryGame,
		Params: []cmd.Param{{
			Name:        "formula",
			Description: "Supports `2d6+1d4*2-3` and similar math",
			Type:        cmd.ParamString,
			Required:    true,
		}},
		UsageBeforeCooldown: 5,
		Cooldown:            30 * time.Second,
		PreHooks:            d.pre(hooks.GuildOnly()),
		PostHooks:           d.post(),
		Execute: func(ctx context.Context, inv *cmd.Invocation) error {
			formula, _ := inv.String("formula")
			res, err := evaluate(formula, intn)
			if err != nil {
				return err
			}
			return inv.Replyf(ctx, "🎲 `%s` → %s = **%d**", res.formula, res.detail, res.total)
		},
	}
}

type term struct {
	value int
	desc  string
	op    string
}

type rollResult struct {
	formula string
	detail  string
	total   int
}

func evaluate(formula string, intn func(int) int) (rollResult, error) {
	formula = strings.ToLower(strings.ReplaceAll(formula, " ", ""))
	tokens := tokenRegex.FindAllString(formula, -1)
	if len(tokens) == 0 || strings.Join(tokens, "") != formula {
		return rollResult{}, cmd.NewCommandError("Can't parse your formula. Try something like `2d6+1d4*2-3`")
	}

	var terms []term
	op := "+"
	expectOperand := true
	for _, tok := range tokens {
		if isOperator(tok) {
			if expectOperand && (len(terms) > 0 || tok == "*" || tok == "/") {
				return rollResult{}, cmd.Errorf("Syntax error near `%s`", tok)
			}
			op = tok
			expectOperand = true
			continue
		}
		if !expectOperand {
			return rollResult{}, cmd.Errorf("Missing operator before `%s`", tok)
		}
		val, desc, err := evaluateToken(tok, intn)
		if err != nil {
			return rollResult{}, cmd.Errorf("Failed to evaluate `%s`: %w", tok, err)
		}
		terms = append(terms, term{value: val, desc: desc, op: op})
		expectOperand = false
	}
	if expectOperand {
		return rollResult{}, cmd.NewCommandError("The formula ends with an operator.")
	}

	// * and / bind tighter than + and -.
	var merged []term
	for _, t := range terms {
		if t.op != "*" && t.op != "/" {
			merged = append(merged, t)
			continue
		}
		prev := &merged[len(merged)-1]
		if t.op == "/" {
			if t.value == 0 {
				return rollResult{}, cmd.NewCommandError("Division by zero is forbidden. Even in games.")
			}
			prev.value /= t.value
		} else {
			prev.value *= t.value
		}
		prev.desc = fmt.Sprintf("%s %s %s", prev.desc, t.op, t.desc)
	}

	total := 0
	var detail strings.Builder
	for i, t := range merged {
		if i > 0 || t.op == "-" {
			fmt.Fprintf(&detail, " %s ", t.op)
		}
		detail.WriteString(t.desc)
		if t.op == "-" {
			total -= t.value
		} else {
			total += t.value
		}
	}

	return rollResult{formula: formula, detail: strings.TrimSpace(detail.String()), total: total}, nil
}

func isOperator(tok string) bool {
	return tok == "+" || tok == "-" || tok == "*" || tok == "/"
}

func evaluateToken(token string, intn func(int) int) (int, string, error) {
	if m := diceRegex.FindStringSubmatch(token); m != nil {
		count := 1
		if m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				return 0, "", fmt.Errorf("invalid dice count")
			}
			count = n
		}
		sides, err := strconv.Atoi(m[2])
		if err != nil || sides < 2 {
			return 0, "", fmt.Errorf("invalid dice sides")
		}
		if count > maxDice || sides > maxSides {
			return 0, "", fmt.Errorf("too big, max %d dice and %d sides", maxDice, maxSides)
		}

		sum := 0
		rolls := make([]string, count)
		for i := range rolls {
			r := intn(sides) + 1
			sum += r
			rolls[i] = strconv.Itoa(r)
		}
		return sum, fmt.Sprintf("`%s` [%s]", token, strings.Join(rolls, ", ")), nil
	}

	num, err := strconv.Atoi(token)
	if err != nil {
		return 0, "", fmt.Errorf("not a number or dice")
	}
	return num, fmt.Sprintf("`%d`", num), nil
}

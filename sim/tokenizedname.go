package sim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// A Name is a hierarchical model URI that includes a series of tokens
// separated by dots, such as "Home.Kitchen.Kettle" or "Bank.Counter[2]".
type Name struct {
	Tokens []NameToken
}

// NameToken is a token of a name.
type NameToken struct {
	ElemName string
	Index    []int
}

// ParseName parses a name string and returns a Name object.
func ParseName(sname string) (Name, error) {
	tokens := strings.Split(sname, ".")
	name := Name{Tokens: make([]NameToken, len(tokens))}

	for i, token := range tokens {
		t, err := parseNameToken(token)
		if err != nil {
			return Name{}, err
		}

		name.Tokens[i] = t
	}

	return name, nil
}

func parseNameToken(token string) (NameToken, error) {
	if err := bracketMustMatch(token); err != nil {
		return NameToken{}, err
	}

	ts := strings.Split(token, "[")
	indices := make([]int, len(ts)-1)

	for i := 1; i < len(ts); i++ {
		if !strings.HasSuffix(ts[i], "]") {
			return NameToken{}, errors.New("name index must be closed by ]")
		}

		index, err := strconv.Atoi(strings.TrimSuffix(ts[i], "]"))
		if err != nil {
			return NameToken{}, errors.New("name index must be integer")
		}

		indices[i-1] = index
	}

	return NameToken{ElemName: ts[0], Index: indices}, nil
}

func bracketMustMatch(name string) error {
	open := 0

	for _, c := range name {
		switch c {
		case '[':
			open++
		case ']':
			open--
			if open < 0 {
				return errors.New("name bracket must match")
			}
		}
	}

	if open != 0 {
		return errors.New("name bracket must match")
	}

	return nil
}

var invalidNameChars = []string{"_", "\"", "'", "-", ":", "/", " ", "\t", "\n"}

// ValidateName checks that a model URI follows the naming convention.
//  1. It is organized in a hierarchical structure. "A.B.C" is valid, but
//     "A.B.C." is not.
//  2. Individual names must not be empty. "A..B" is not valid.
//  3. Individual names start with a capital letter and contain no
//     separators, quotes or blanks.
//  4. Elements in a series use square-bracket notation, as in "Fan[1]".
func ValidateName(name string) error {
	if name == "" {
		return preconditionf("name must not be empty")
	}

	n, err := ParseName(name)
	if err != nil {
		return preconditionf("name %s is not valid: %s", name, err)
	}

	for _, token := range n.Tokens {
		if err := tokenMustBeValid(token); err != nil {
			return preconditionf("name %s is not valid: %s", name, err)
		}
	}

	return nil
}

// NameMustBeValid panics if the name does not follow the naming convention
// checked by ValidateName.
func NameMustBeValid(name string) {
	if err := ValidateName(name); err != nil {
		panic(err)
	}
}

func tokenMustBeValid(token NameToken) error {
	if token.ElemName == "" {
		return errors.New("name element must not be empty")
	}

	for _, c := range invalidNameChars {
		if strings.Contains(token.ElemName, c) {
			return fmt.Errorf("name element must not contain %q", c)
		}
	}

	if token.ElemName[0] < 'A' || token.ElemName[0] > 'Z' {
		return errors.New("name element must start with a capital letter")
	}

	return nil
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}

package ast

import (
	"strconv"
	"strings"
)

// Sprint renders a node as a parenthesized prefix form, e.g. (+ 1 (* 2 3)).
// It is used by `lox parse` and by tests that assert on tree shape.
func Sprint(node Node) string {
	var sb strings.Builder
	write(&sb, node)
	return sb.String()
}

func write(sb *strings.Builder, node Node) {
	switch n := node.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *File:
		for i, s := range n.Body {
			if i > 0 {
				sb.WriteByte('\n')
			}
			write(sb, s)
		}

	case *LiteralExpr:
		sb.WriteString(literalString(n.Value))
	case *GroupingExpr:
		parens(sb, "group", n.Inner)
	case *UnaryExpr:
		parens(sb, n.Op.Lexeme, n.Operand)
	case *BinaryExpr:
		parens(sb, n.Op.Lexeme, n.Left, n.Right)
	case *LogicalExpr:
		parens(sb, n.Op.Lexeme, n.Left, n.Right)
	case *TernaryExpr:
		parens(sb, "?:", n.Condition, n.Then, n.Else)
	case *AssignExpr:
		parens(sb, "= "+n.Name.Lexeme, n.Value)
	case *VariableExpr:
		sb.WriteString(n.Name.Lexeme)
	case *CallExpr:
		nodes := []Node{n.Callee}
		for _, a := range n.Args {
			nodes = append(nodes, a)
		}
		parens(sb, "call", nodes...)
	case *GetExpr:
		parens(sb, "get "+n.Name.Lexeme, n.Object)
	case *SetExpr:
		parens(sb, "set "+n.Name.Lexeme, n.Object, n.Value)
	case *ThisExpr:
		sb.WriteString("this")
	case *SuperExpr:
		sb.WriteString("(super " + n.Method.Lexeme + ")")

	case *ExprStmt:
		parens(sb, ";", n.Expr)
	case *PrintStmt:
		parens(sb, "print", n.Expr)
	case *VarDeclStmt:
		if n.Init == nil {
			sb.WriteString("(var " + n.Name.Lexeme + ")")
		} else {
			parens(sb, "var "+n.Name.Lexeme, n.Init)
		}
	case *BlockStmt:
		parens(sb, "block", stmtNodes(n.Stmts)...)
	case *IfStmt:
		if n.Else == nil {
			parens(sb, "if", n.Condition, n.Then)
		} else {
			parens(sb, "if", n.Condition, n.Then, n.Else)
		}
	case *WhileStmt:
		parens(sb, "while", n.Condition, n.Body)
	case *BreakStmt:
		sb.WriteString("(break)")
	case *ContinueStmt:
		sb.WriteString("(continue)")
	case *ReturnStmt:
		if n.Value == nil {
			sb.WriteString("(return)")
		} else {
			parens(sb, "return", n.Value)
		}
	case *FuncDecl:
		head := "fun " + n.Name.Lexeme + "("
		for i, p := range n.Params {
			if i > 0 {
				head += " "
			}
			head += p.Lexeme
		}
		parens(sb, head+")", stmtNodes(n.Body)...)
	case *ClassDecl:
		head := "class " + n.Name.Lexeme
		if n.Superclass != nil {
			head += " < " + n.Superclass.Name.Lexeme
		}
		nodes := make([]Node, len(n.Methods))
		for i, md := range n.Methods {
			nodes[i] = md
		}
		parens(sb, head, nodes...)
	default:
		sb.WriteString("<?>")
	}
}

func parens(sb *strings.Builder, head string, nodes ...Node) {
	sb.WriteByte('(')
	sb.WriteString(head)
	for _, n := range nodes {
		sb.WriteByte(' ')
		write(sb, n)
	}
	sb.WriteByte(')')
}

func stmtNodes(stmts []Stmt) []Node {
	nodes := make([]Node, len(stmts))
	for i, s := range stmts {
		nodes[i] = s
	}
	return nodes
}

func literalString(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	}
	return "<?>"
}

// Package sqlbuild assembles SQL for the engine.
//
// Builder is for ad hoc, conditionally assembled statements:
//
//	b := sqlbuild.New("SELECT user_id, user_nm FROM t_user WHERE 1 = 1")
//	b.AppendIfPresent("AND user_nm = ?", form.Name)
//	b.Append("ORDER BY user_id")
//
// Template is for fixed statements declared once and bound many times:
//
//	var findUser = sqlbuild.Must(sqlbuild.NewTemplate().
//	    SQL("SELECT * FROM t_user").
//	    Bind("WHERE user_id = ?", "user_id", row.Text).
//	    Build())
//
//	stmt, err := findUser.Bind(params)
//
// Both satisfy Statement, which the engine executes. All markers are the
// positional "?"; the dialect rewrites them for engines that number them.
package sqlbuild

// Statement is SQL text with positional bind values, ready to execute.
type Statement interface {
	// Query returns the text and values, or ErrBindMismatch if the number of
	// markers and values differ.
	Query() (string, []any, error)
}

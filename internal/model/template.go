package model

// Template is a built-in starter snippet offered when creating a new one.
type Template struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Language    string `json:"language"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// Templates are the starter snippets shipped with the application.
var Templates = []Template{
	{
		ID:          "react-fc",
		Label:       "React Functional Component",
		Language:    "javascript",
		Description: "Basic component with default export and props.",
		Code: `export default function ComponentName({ prop }) {
  return (
    <div className="p-4">
      <h1>{prop}</h1>
    </div>
  );
}`,
	},
	{
		ID:          "js-fetch",
		Label:       "JS Fetch Async/Await",
		Language:    "javascript",
		Description: "Modern HTTP request with error handling.",
		Code: `const fetchData = async (url) => {
  try {
    const response = await fetch(url);
    if (!response.ok) throw new Error('Network response was not ok');
    return await response.json();
  } catch (error) {
    console.error('Fetch error:', error);
  }
};`,
	},
	{
		ID:          "py-main",
		Label:       "Python script entry point",
		Language:    "python",
		Description: "Script skeleton with a main guard.",
		Code: `def main():
    print("hello")


if __name__ == "__main__":
    main()`,
	},
	{
		ID:          "sql-cte",
		Label:       "SQL CTE",
		Language:    "sql",
		Description: "Common table expression template.",
		Code: `WITH recent AS (
    SELECT *
    FROM orders
    WHERE created_at > CURRENT_DATE - INTERVAL '7 days'
)
SELECT customer_id, COUNT(*) AS total
FROM recent
GROUP BY customer_id;`,
	},
	{
		ID:          "bash-strict",
		Label:       "Bash strict mode",
		Language:    "bash",
		Description: "Script header that fails fast.",
		Code: `#!/usr/bin/env bash
set -euo pipefail
IFS=$'\n\t'`,
	},
}

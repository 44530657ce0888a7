package gateway

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"
)

const scaffoldMessage = "DevLens frontend scaffold is ready."

// shellTemplate is the HTML document the browser application boots from.
// The view name and its parameters are handed to the client bundle as data
// attributes.
var shellTemplate = template.Must(template.New("shell").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} · DevLens</title>
</head>
<body>
<main id="app" data-view="{{.View}}" data-env="{{.Env}}"{{range $k, $v := .Params}} data-{{$k}}="{{$v}}"{{end}}>
<noscript>DevLens needs JavaScript enabled.</noscript>
</main>
</body>
</html>
`))

type shellData struct {
	Title  string
	View   string
	Env    string
	Params map[string]string
}

var viewTitles = map[string]string{
	routeRepo:     "Repository",
	routeRepoChat: "Chat",
	routeShare:    "Shared answer",
}

func (s *Server) renderHome(c *fiber.Ctx) error {
	return c.SendString(scaffoldMessage)
}

func (s *Server) renderShell(c *fiber.Ctx, view string, params map[string]string) error {
	var buf bytes.Buffer
	err := shellTemplate.Execute(&buf, shellData{
		Title:  viewTitles[view],
		View:   view,
		Env:    s.config.Environment,
		Params: params,
	})
	if err != nil {
		return err
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> an OpenAPI document built from the registered routes
func RegisterSwagger(r *gin.Engine, version string) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, openAPI(r.Routes(), version))
	})
}

// openAPIPath turns /api/clients/:id into /api/clients/{id}.
func openAPIPath(p string) (string, []string) {
	parts := strings.Split(p, "/")
	var params []string
	for i, s := range parts {
		if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			params = append(params, s[1:])
			parts[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(parts, "/"), params
}

func openAPI(routes gin.RoutesInfo, version string) gin.H {
	paths := gin.H{}
	for _, rt := range routes {
		if strings.HasPrefix(rt.Path, "/swagger") {
			continue
		}
		p, params := openAPIPath(rt.Path)
		item, ok := paths[p].(gin.H)
		if !ok {
			item = gin.H{}
			paths[p] = item
		}
		op := gin.H{"responses": gin.H{"200": gin.H{"description": "success envelope"}}}
		if strings.HasPrefix(rt.Path, "/api") || rt.Path == "/auth/me" || rt.Path == "/auth/logout" ||
			rt.Path == "/auth/change-password" || rt.Path == "/auth/register" {
			op["security"] = []gin.H{{"bearerAuth": []string{}}}
		}
		if len(params) > 0 {
			ps := make([]gin.H, 0, len(params))
			for _, name := range params {
				ps = append(ps, gin.H{"name": name, "in": "path", "required": true, "schema": gin.H{"type": "string"}})
			}
			op["parameters"] = ps
		}
		item[strings.ToLower(rt.Method)] = op
	}
	return gin.H{
		"openapi": "3.0.0",
		"info":    gin.H{"title": "sitework", "version": version},
		"paths":   paths,
		"components": gin.H{"securitySchemes": gin.H{
			"bearerAuth": gin.H{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
		}},
	}
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>sitework API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

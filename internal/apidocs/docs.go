// Package apidocs holds the OpenAPI description served at /swagger.
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {"tags": ["system"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"], "summary": "Current identity",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/v1/chat/stream": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["chat"],
                "summary": "Stream one assistant reply",
                "description": "Relays the reply as server-sent events: data events carrying {\"delta\"}, then one done or error event.",
                "consumes": ["application/json"],
                "produces": ["text/event-stream"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ChatStreamRequest"}}],
                "responses": {"200": {"description": "Event stream"}, "400": {"description": "Invalid history"}, "404": {"description": "Conversation not found"}}
            }
        },
        "/v1/conversations": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "List own conversations",
                "parameters": [{"in": "query", "name": "limit", "type": "integer"}],
                "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Create a conversation",
                "responses": {"201": {"description": "Created"}}}
        },
        "/v1/conversations/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Conversation with transcript",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Rename a conversation",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Delete a conversation",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"204": {"description": "Deleted"}, "404": {"description": "Not found"}}}
        },
        "/v1/conversations/{id}/messages/{message_id}/feedback": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["conversations"], "summary": "Rate an assistant reply (owner)",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "message_id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"was_helpful": {"type": "boolean"}}}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Not an assistant reply"}, "403": {"description": "Forbidden"}, "404": {"description": "Not found"}}}
        },
        "/v1/faqs": {
            "get": {"tags": ["faqs"], "summary": "List FAQs",
                "parameters": [
                    {"in": "query", "name": "category", "type": "string"},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not modified"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["faqs"], "summary": "Create an FAQ (admin)",
                "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}
        },
        "/v1/faqs/{id}": {
            "get": {"tags": ["faqs"], "summary": "Read an FAQ and count the view",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["faqs"], "summary": "Update an FAQ (admin)",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["faqs"], "summary": "Delete an FAQ (admin)",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/v1/announcements": {
            "get": {"tags": ["announcements"], "summary": "List announcements",
                "parameters": [
                    {"in": "query", "name": "upcoming_only", "type": "boolean", "default": true},
                    {"in": "query", "name": "category", "type": "string"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not modified"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["announcements"], "summary": "Create an announcement",
                "responses": {"201": {"description": "Created"}}}
        },
        "/v1/announcements/{id}": {
            "get": {"tags": ["announcements"], "summary": "Read an announcement",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["announcements"], "summary": "Update an announcement (author or admin)",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["announcements"], "summary": "Deactivate an announcement (author or admin)",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        }
    },
    "definitions": {
        "Message": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["user", "assistant"]},
                "content": {"type": "string"}
            }
        },
        "ChatStreamRequest": {
            "type": "object",
            "properties": {
                "conversation_id": {"type": "string"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/Message"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ClarifyAI API",
	Description:      "Campus assistant: streamed chat, conversation history, FAQs and announcements.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Package docs registers the API description served under /swagger.
package docs

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
    "paths": {
        "/register": {
            "post": {
                "tags": ["Users"],
                "summary": "Register a user",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "409": {"description": "Email taken"}
                }
            }
        },
        "/login": {
            "post": {
                "tags": ["Users"],
                "summary": "Log in",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/boards": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Boards"],
                "summary": "List my boards",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.BoardResponse"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Boards"],
                "summary": "Create a board",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateBoardRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.BoardResponse"}}}
            }
        },
        "/boards/join": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Boards"],
                "summary": "Join a board by code",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.JoinBoardRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.BoardResponse"}},
                    "404": {"description": "Unknown code"}
                }
            }
        },
        "/boards/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Boards"],
                "summary": "Board snapshot",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.Snapshot"}},
                    "403": {"description": "Not a member"}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Boards"],
                "summary": "Rename a board",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.UpdateBoardRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.BoardResponse"}},
                    "403": {"description": "Not the owner"}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Boards"],
                "summary": "Delete a board",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Not the owner"}
                }
            }
        },
        "/boards/{id}/members": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Boards"],
                "summary": "List board members",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.MemberResponse"}}}}
            }
        },
        "/boards/{id}/columns/{column_id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Columns"],
                "summary": "Update column settings",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "column_id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.UpdateColumnRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.Column"}},
                    "400": {"description": "Invalid WIP limit"}
                }
            }
        },
        "/boards/{id}/tasks": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Create a task",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateTaskRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/engine.Task"}}}
            }
        },
        "/boards/{id}/tasks/{task_id}": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Update or move a task",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "task_id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/engine.TaskUpdate"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/engine.Task"}},
                    "409": {"description": "wip-limit-reached"}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Tasks"],
                "summary": "Delete a task",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "task_id", "type": "string", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not found"}}
            }
        }
    },
    "definitions": {
        "handler.RegisterRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {"email": {"type": "string"}, "name": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.UserResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "email": {"type": "string"}, "name": {"type": "string"}}
        },
        "handler.AuthResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "user": {"$ref": "#/definitions/handler.UserResponse"}}
        },
        "handler.CreateBoardRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {"name": {"type": "string"}}
        },
        "handler.UpdateBoardRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {"name": {"type": "string"}}
        },
        "handler.JoinBoardRequest": {
            "type": "object",
            "required": ["code"],
            "properties": {"code": {"type": "string"}}
        },
        "handler.BoardResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"}, "name": {"type": "string"}, "code": {"type": "string"},
                "owner_id": {"type": "string"}, "created_at": {"type": "string"}
            }
        },
        "handler.MemberResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "email": {"type": "string"}, "joined_at": {"type": "string"}}
        },
        "handler.UpdateColumnRequest": {
            "type": "object",
            "properties": {"wipLimit": {"type": "integer", "minimum": 1}, "doneRule": {"type": "string"}}
        },
        "handler.CreateTaskRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {"title": {"type": "string"}, "status": {"type": "string", "enum": ["Backlog"]}, "color": {"type": "string"}}
        },
        "engine.Column": {
            "type": "object",
            "properties": {
                "id": {"type": "string"}, "title": {"type": "string"},
                "hasSubsections": {"type": "boolean"}, "allowWipLimit": {"type": "boolean"},
                "wipLimit": {"type": "integer"}, "doneRule": {"type": "string"}
            }
        },
        "engine.Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"}, "title": {"type": "string"}, "description": {"type": "string"},
                "status": {"$ref": "#/definitions/engine.Status"}, "color": {"type": "string"}, "assignedTo": {"type": "string"}
            }
        },
        "engine.TaskUpdate": {
            "type": "object",
            "properties": {
                "status": {"$ref": "#/definitions/engine.Status"}, "position": {"type": "integer"},
                "title": {"type": "string"}, "description": {"type": "string"},
                "color": {"type": "string"}, "assignedTo": {"type": "string"}
            }
        },
        "engine.Snapshot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"}, "name": {"type": "string"}, "code": {"type": "string"},
                "columns": {"type": "array", "items": {"$ref": "#/definitions/engine.Column"}},
                "tasks": {"type": "array", "items": {"$ref": "#/definitions/engine.Task"}}
            }
        },
        "engine.Status": {
            "type": "string",
            "enum": [
                "Backlog", "Specification Active", "Specification Done",
                "Implementation Active", "Implementation Done", "Test", "Done"
            ]
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Taskboard API",
	Description:      "Server of record for WIP-limited team boards.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

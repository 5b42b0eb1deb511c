// Package docs holds the OpenAPI document served under /docs. It mirrors the
// swag annotations on the handlers; rerun swag init -g cmd/api/main.go after
// changing them.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "School Cup"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",

    "paths": {
        "/": {
            "get": {
                "description": "Returns API name, version and status.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "meta"
                ],
                "summary": "API root info",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/admin/audit": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Audit log",
                "parameters": [
                    {
                        "type": "integer",
                        "default": 50,
                        "description": "Rows, 1 to 200",
                        "name": "limit",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "default": 0,
                        "description": "Offset",
                        "name": "offset",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/store.AuditEntry"
                            }
                        }
                    }
                }
            }
        },
        "/admin/dashboard": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Admin dashboard",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/store.Dashboard"
                        }
                    }
                }
            }
        },
        "/admin/games": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "List games (admin)",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Status",
                        "name": "status",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "modality_id",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Team ID",
                        "name": "team_id",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.Game"
                            }
                        }
                    }
                }
            },
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Create game",
                "parameters": [
                    {
                        "description": "Game",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Game"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/tournament.Game"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Game detail (admin)",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.GameDetail"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            },
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Update game",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Game",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Game"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.Game"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "admin"
                ],
                "summary": "Delete game",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}/cancel": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "scoring"
                ],
                "summary": "Cancel game",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.Game"
                        }
                    },
                    "409": {
                        "description": "Invalid transition",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}/config": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "scoring"
                ],
                "summary": "Save scoring rules",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Rules",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/scoring.Config"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/scoring.Config"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "A set is already finished",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}/events": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "scoring"
                ],
                "summary": "Add game event",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Event",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.GameEvent"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/tournament.GameEvent"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Game not live or finished",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}/events/{eventID}": {
            "delete": {
                "tags": [
                    "scoring"
                ],
                "summary": "Delete game event",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Event ID",
                        "name": "eventID",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}/finish": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "scoring"
                ],
                "summary": "Finish game",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.Game"
                        }
                    },
                    "409": {
                        "description": "Invalid transition",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}/score": {
            "post": {
                "description": "Commands: point, undo_point, timeout, set_server. Side is home or away.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "scoring"
                ],
                "summary": "Scoring command",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Command",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/scoring.Command"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/live.ScoreUpdate"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Match finished, no timeouts left, nothing to undo",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/games/{id}/start": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "scoring"
                ],
                "summary": "Start game",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.Game"
                        }
                    },
                    "409": {
                        "description": "Invalid transition",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/modalities": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "List all modalities",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.Modality"
                            }
                        }
                    }
                }
            },
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Create modality",
                "parameters": [
                    {
                        "description": "Modality",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Modality"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/tournament.Modality"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/modalities/{id}": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Update modality",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Modality",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Modality"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.Modality"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "admin"
                ],
                "summary": "Delete modality",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Still referenced",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/players": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "List players of a team",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Team ID",
                        "name": "team_id",
                        "in": "query",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.Player"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            },
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Create player",
                "parameters": [
                    {
                        "description": "Player",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Player"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/tournament.Player"
                        }
                    },
                    "400": {
                        "description": "Invalid or roster full",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Jersey number taken",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/players/{id}": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Update player",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Player ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Player",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Player"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.Player"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "admin"
                ],
                "summary": "Delete player",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Player ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/players/{id}/photo": {
            "put": {
                "consumes": [
                    "multipart/form-data"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Upload player photo",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Player ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "file",
                        "description": "JPEG, PNG or WebP",
                        "name": "photo",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "413": {
                        "description": "Request Entity Too Large",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "admin"
                ],
                "summary": "Delete player photo",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Player ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/registration": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Update registration window",
                "parameters": [
                    {
                        "description": "Window",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.RegistrationConfig"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.RegistrationConfig"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/requests/{kind}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "List signup requests",
                "parameters": [
                    {
                        "type": "string",
                        "description": "teams or players",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "default": "pending",
                        "description": "pending, approved or rejected",
                        "name": "status",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.TeamRequest"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/requests/{kind}/{id}/approve": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Approve signup",
                "parameters": [
                    {
                        "type": "string",
                        "description": "teams or players",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Request ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/store.Review"
                        }
                    },
                    "400": {
                        "description": "Roster full or invalid",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Already reviewed",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/requests/{kind}/{id}/reject": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Reject signup",
                "parameters": [
                    {
                        "type": "string",
                        "description": "teams or players",
                        "name": "kind",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Request ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Reason",
                        "name": "body",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/handler.reviewInput"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/store.Review"
                        }
                    },
                    "409": {
                        "description": "Already reviewed",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/teams": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "List teams (admin)",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "modality_id",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Category",
                        "name": "category",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Name search",
                        "name": "q",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.Team"
                            }
                        }
                    }
                }
            },
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Create team",
                "parameters": [
                    {
                        "description": "Team",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Team"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/tournament.Team"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/admin/teams/{id}": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "admin"
                ],
                "summary": "Update team",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Team ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Team",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/tournament.Team"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/tournament.Team"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "admin"
                ],
                "summary": "Delete team",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Team ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Team has games",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "auth"
                ],
                "summary": "Sign in",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handler.loginInput"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.SessionInfo"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": [
                    "auth"
                ],
                "summary": "Sign out",
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                }
            }
        },
        "/auth/session": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "auth"
                ],
                "summary": "Current session",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.SessionInfo"
                        }
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/calendar": {
            "get": {
                "description": "Games between two days grouped by day in the tournament time zone. Defaults to the next 30 days.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "games"
                ],
                "summary": "Calendar",
                "parameters": [
                    {
                        "type": "string",
                        "description": "First day, YYYY-MM-DD",
                        "name": "from",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Last day, YYYY-MM-DD",
                        "name": "to",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/store.CalendarDay"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/games": {
            "get": {
                "description": "Games filtered by status, modality, team and date range. Live lists are cached for seconds, the rest for minutes.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "games"
                ],
                "summary": "List games",
                "parameters": [
                    {
                        "type": "string",
                        "description": "scheduled, live, finished or cancelled",
                        "name": "status",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "modality_id",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Team ID (home or away)",
                        "name": "team_id",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "First day, YYYY-MM-DD",
                        "name": "from",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Last day, YYYY-MM-DD",
                        "name": "to",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.Game"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/games/{id}": {
            "get": {
                "description": "A game with its scoring state (set sports) and event log.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "games"
                ],
                "summary": "Game detail",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Game ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.GameDetail"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/health/cache": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Cache health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/health/db": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Database health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": true
                        }
                    }
                }
            }
        },
        "/modalities": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "modalities"
                ],
                "summary": "List modalities",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.Modality"
                            }
                        }
                    }
                }
            }
        },
        "/modalities/{id}/standings": {
            "get": {
                "description": "Futsal ranks by points (3/1/0), goal difference and goals scored. Set sports rank by wins, set ratio and point ratio.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "modalities"
                ],
                "summary": "Modality standings",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.StandingsTable"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/players/top": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "players"
                ],
                "summary": "Top players",
                "parameters": [
                    {
                        "type": "string",
                        "default": "goals",
                        "description": "goals, yellow_cards, red_cards, points, aces or blocks",
                        "name": "stat",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "modality_id",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "default": 10,
                        "description": "Rows, 1 to 100",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/store.TopPlayer"
                            }
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/players/{id}/photo": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "players"
                ],
                "summary": "Player photo",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Player ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "304": {
                        "description": "Not modified"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/registration": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "registration"
                ],
                "summary": "Registration window",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.RegistrationStatus"
                        }
                    }
                }
            }
        },
        "/registration/players": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "registration"
                ],
                "summary": "Sign up a player",
                "parameters": [
                    {
                        "description": "Player signup",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handler.playerSignup"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/tournament.PlayerRequest"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Window closed",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/registration/teams": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "registration"
                ],
                "summary": "Sign up a team",
                "parameters": [
                    {
                        "description": "Team signup",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handler.teamSignup"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/tournament.TeamRequest"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Window closed or modality full",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/teams": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "teams"
                ],
                "summary": "List teams",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Modality ID",
                        "name": "modality_id",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "masculino, feminino or misto",
                        "name": "category",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Name search",
                        "name": "q",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/tournament.Team"
                            }
                        }
                    }
                }
            }
        },
        "/teams/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "teams"
                ],
                "summary": "Team detail",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Team ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.TeamDetail"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "handler.GameDetail": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "modality_id": {
                    "type": "integer"
                },
                "home_team_id": {
                    "type": "integer"
                },
                "away_team_id": {
                    "type": "integer"
                },
                "home_team": {
                    "type": "string"
                },
                "away_team": {
                    "type": "string"
                },
                "sport": {
                    "type": "string"
                },
                "scheduled_at": {
                    "type": "string"
                },
                "location": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "home_score": {
                    "type": "integer"
                },
                "away_score": {
                    "type": "integer"
                },
                "highlights": {
                    "type": "string"
                },
                "started_at": {
                    "type": "string"
                },
                "finished_at": {
                    "type": "string"
                },
                "match": {
                    "$ref": "#/definitions/scoring.Match"
                },
                "events": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/tournament.GameEvent"
                    }
                }
            }
        },
        "handler.RegistrationStatus": {
            "type": "object",
            "properties": {
                "open": {
                    "type": "boolean"
                },
                "opens_at": {
                    "type": "string"
                },
                "closes_at": {
                    "type": "string"
                },
                "max_teams_per_modality": {
                    "type": "integer"
                },
                "accepting": {
                    "type": "boolean"
                }
            }
        },
        "handler.SessionInfo": {
            "type": "object",
            "properties": {
                "user": {
                    "$ref": "#/definitions/store.Admin"
                },
                "expires_at": {
                    "type": "string"
                }
            }
        },
        "handler.StandingsTable": {
            "type": "object",
            "properties": {
                "modality": {
                    "$ref": "#/definitions/tournament.Modality"
                },
                "rows": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/standings.Row"
                    }
                }
            }
        },
        "handler.TeamDetail": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "modality_id": {
                    "type": "integer"
                },
                "category": {
                    "type": "string"
                },
                "coach_name": {
                    "type": "string"
                },
                "coach_contact": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "players": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/tournament.Player"
                    }
                }
            }
        },
        "handler.loginInput": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "handler.playerSignup": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "jersey_number": {
                    "type": "integer"
                },
                "team_id": {
                    "type": "integer"
                }
            }
        },
        "handler.reviewInput": {
            "type": "object",
            "properties": {
                "reason": {
                    "type": "string"
                }
            }
        },
        "handler.teamSignup": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "modality_id": {
                    "type": "integer"
                },
                "category": {
                    "type": "string"
                },
                "coach_name": {
                    "type": "string"
                },
                "coach_contact": {
                    "type": "string"
                }
            }
        },
        "live.ScoreUpdate": {
            "type": "object",
            "properties": {
                "game": {
                    "$ref": "#/definitions/tournament.Game"
                },
                "match": {
                    "$ref": "#/definitions/scoring.Match"
                },
                "events": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/scoring.Event"
                    }
                }
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {
                            "type": "string"
                        },
                        "message": {
                            "type": "string"
                        },
                        "field": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "scoring.Command": {
            "type": "object",
            "properties": {
                "type": {
                    "$ref": "#/definitions/scoring.CommandType"
                },
                "side": {
                    "$ref": "#/definitions/scoring.Side"
                }
            }
        },
        "scoring.CommandType": {
            "type": "string",
            "enum": [
                "point",
                "undo_point",
                "timeout",
                "set_server"
            ],
            "x-enum-varnames": [
                "CmdPoint",
                "CmdUndoPoint",
                "CmdTimeout",
                "CmdSetServer"
            ]
        },
        "scoring.Config": {
            "type": "object",
            "properties": {
                "points_per_set": {
                    "type": "integer"
                },
                "tiebreak_points": {
                    "type": "integer"
                },
                "min_lead": {
                    "type": "integer"
                },
                "sets_to_win": {
                    "type": "integer"
                },
                "max_timeouts_per_set": {
                    "type": "integer"
                },
                "serve_rotation": {
                    "$ref": "#/definitions/scoring.Rotation"
                },
                "serve_every": {
                    "type": "integer"
                }
            }
        },
        "scoring.Event": {
            "type": "object",
            "properties": {
                "type": {
                    "$ref": "#/definitions/scoring.EventType"
                },
                "side": {
                    "$ref": "#/definitions/scoring.Side"
                },
                "set": {
                    "type": "integer"
                }
            }
        },
        "scoring.EventType": {
            "type": "string",
            "enum": [
                "point",
                "point_undone",
                "serve_changed",
                "timeout",
                "set_won",
                "set_started",
                "match_won"
            ],
            "x-enum-varnames": [
                "EvtPoint",
                "EvtPointUndone",
                "EvtServeChanged",
                "EvtTimeout",
                "EvtSetWon",
                "EvtSetStarted",
                "EvtMatchWon"
            ]
        },
        "scoring.Match": {
            "type": "object",
            "properties": {
                "config": {
                    "$ref": "#/definitions/scoring.Config"
                },
                "sets": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/scoring.Set"
                    }
                },
                "winner": {
                    "$ref": "#/definitions/scoring.Side"
                }
            }
        },
        "scoring.Rotation": {
            "type": "string",
            "enum": [
                "winner",
                "alternate"
            ],
            "x-enum-varnames": [
                "RotationWinner",
                "RotationAlternate"
            ]
        },
        "scoring.Set": {
            "type": "object",
            "properties": {
                "set_number": {
                    "type": "integer"
                },
                "home_points": {
                    "type": "integer"
                },
                "away_points": {
                    "type": "integer"
                },
                "home_timeouts": {
                    "type": "integer"
                },
                "away_timeouts": {
                    "type": "integer"
                },
                "first_server": {
                    "$ref": "#/definitions/scoring.Side"
                },
                "server": {
                    "$ref": "#/definitions/scoring.Side"
                },
                "rallies": {
                    "type": "string"
                },
                "winner": {
                    "$ref": "#/definitions/scoring.Side"
                },
                "finished": {
                    "type": "boolean"
                }
            }
        },
        "scoring.Side": {
            "type": "string",
            "enum": [
                "home",
                "away"
            ],
            "x-enum-varnames": [
                "Home",
                "Away"
            ]
        },
        "standings.Row": {
            "type": "object",
            "properties": {
                "rank": {
                    "type": "integer"
                },
                "team_id": {
                    "type": "integer"
                },
                "team_name": {
                    "type": "string"
                },
                "played": {
                    "type": "integer"
                },
                "wins": {
                    "type": "integer"
                },
                "draws": {
                    "type": "integer"
                },
                "losses": {
                    "type": "integer"
                },
                "score_for": {
                    "type": "integer"
                },
                "score_against": {
                    "type": "integer"
                },
                "rallies_for": {
                    "type": "integer"
                },
                "rallies_against": {
                    "type": "integer"
                },
                "points": {
                    "type": "integer"
                }
            }
        },
        "store.Admin": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "email": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                }
            }
        },
        "store.AuditEntry": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "actor_id": {
                    "type": "integer"
                },
                "actor": {
                    "type": "string"
                },
                "action": {
                    "type": "string"
                },
                "details": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                }
            }
        },
        "store.CalendarDay": {
            "type": "object",
            "properties": {
                "date": {
                    "type": "string"
                },
                "games": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/tournament.Game"
                    }
                }
            }
        },
        "store.Dashboard": {
            "type": "object",
            "properties": {
                "teams": {
                    "type": "integer"
                },
                "players": {
                    "type": "integer"
                },
                "modalities": {
                    "type": "integer"
                },
                "games_scheduled": {
                    "type": "integer"
                },
                "games_live": {
                    "type": "integer"
                },
                "games_finished": {
                    "type": "integer"
                },
                "pending_team_requests": {
                    "type": "integer"
                },
                "pending_player_requests": {
                    "type": "integer"
                },
                "registration": {
                    "$ref": "#/definitions/tournament.RegistrationConfig"
                }
            }
        },
        "store.Review": {
            "type": "object",
            "properties": {
                "kind": {
                    "type": "string"
                },
                "request_id": {
                    "type": "integer"
                },
                "status": {
                    "type": "string"
                },
                "created_id": {
                    "type": "integer"
                }
            }
        },
        "store.TopPlayer": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "jersey_number": {
                    "type": "integer"
                },
                "team_id": {
                    "type": "integer"
                },
                "goals": {
                    "type": "integer"
                },
                "yellow_cards": {
                    "type": "integer"
                },
                "red_cards": {
                    "type": "integer"
                },
                "points": {
                    "type": "integer"
                },
                "aces": {
                    "type": "integer"
                },
                "blocks": {
                    "type": "integer"
                },
                "is_starter": {
                    "type": "boolean"
                },
                "is_captain": {
                    "type": "boolean"
                },
                "photo_url": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "team_name": {
                    "type": "string"
                },
                "value": {
                    "type": "integer"
                }
            }
        },
        "tournament.Game": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "modality_id": {
                    "type": "integer"
                },
                "home_team_id": {
                    "type": "integer"
                },
                "away_team_id": {
                    "type": "integer"
                },
                "home_team": {
                    "type": "string"
                },
                "away_team": {
                    "type": "string"
                },
                "sport": {
                    "type": "string"
                },
                "scheduled_at": {
                    "type": "string"
                },
                "location": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "home_score": {
                    "type": "integer"
                },
                "away_score": {
                    "type": "integer"
                },
                "highlights": {
                    "type": "string"
                },
                "started_at": {
                    "type": "string"
                },
                "finished_at": {
                    "type": "string"
                }
            }
        },
        "tournament.GameEvent": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "game_id": {
                    "type": "integer"
                },
                "kind": {
                    "type": "string"
                },
                "team_id": {
                    "type": "integer"
                },
                "player_id": {
                    "type": "integer"
                },
                "period": {
                    "type": "integer"
                },
                "minute": {
                    "type": "integer"
                },
                "description": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                }
            }
        },
        "tournament.Modality": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "sport": {
                    "type": "string"
                },
                "min_players": {
                    "type": "integer"
                },
                "max_players": {
                    "type": "integer"
                },
                "active": {
                    "type": "boolean"
                }
            }
        },
        "tournament.Player": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "jersey_number": {
                    "type": "integer"
                },
                "team_id": {
                    "type": "integer"
                },
                "goals": {
                    "type": "integer"
                },
                "yellow_cards": {
                    "type": "integer"
                },
                "red_cards": {
                    "type": "integer"
                },
                "points": {
                    "type": "integer"
                },
                "aces": {
                    "type": "integer"
                },
                "blocks": {
                    "type": "integer"
                },
                "is_starter": {
                    "type": "boolean"
                },
                "is_captain": {
                    "type": "boolean"
                },
                "photo_url": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                }
            }
        },
        "tournament.PlayerRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "jersey_number": {
                    "type": "integer"
                },
                "team_id": {
                    "type": "integer"
                },
                "status": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                },
                "reviewed_by": {
                    "type": "integer"
                },
                "reviewed_at": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                }
            }
        },
        "tournament.RegistrationConfig": {
            "type": "object",
            "properties": {
                "open": {
                    "type": "boolean"
                },
                "opens_at": {
                    "type": "string"
                },
                "closes_at": {
                    "type": "string"
                },
                "max_teams_per_modality": {
                    "type": "integer"
                }
            }
        },
        "tournament.Team": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "modality_id": {
                    "type": "integer"
                },
                "category": {
                    "type": "string"
                },
                "coach_name": {
                    "type": "string"
                },
                "coach_contact": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                }
            }
        },
        "tournament.TeamRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "integer"
                },
                "name": {
                    "type": "string"
                },
                "modality_id": {
                    "type": "integer"
                },
                "category": {
                    "type": "string"
                },
                "coach_name": {
                    "type": "string"
                },
                "coach_contact": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                },
                "reviewed_by": {
                    "type": "integer"
                },
                "reviewed_at": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "School Cup API",
	Description:      "School tournament console: teams, players, games, live set scoring and public signups. Admin routes need the session cookie set by /auth/login.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

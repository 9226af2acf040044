package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/check_service/sequential"
	grpccomm "github.com/AnishMulay/fscheck/internal/communication/grpc"
	"github.com/AnishMulay/fscheck/internal/config"
	"github.com/AnishMulay/fscheck/internal/image_service"
	imageservice "github.com/AnishMulay/fscheck/internal/image_service/localdisc"
	"github.com/AnishMulay/fscheck/internal/layout"
	"github.com/AnishMulay/fscheck/internal/log_service"
	"github.com/AnishMulay/fscheck/internal/log_service/zaplog"
	"github.com/AnishMulay/fscheck/internal/server/checkserver"
)

type MCPConfig struct {
	Servers []struct {
		ID      string `yaml:"id"`
		Address string `yaml:"address"`
	} `yaml:"servers"`
	Mmap bool `yaml:"mmap"`
}

// LoadConfig reads the tool server config, writing a default one first
// when path does not exist.
func LoadConfig(path string) (*MCPConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		defaultConfig := &MCPConfig{Mmap: true}
		defaultConfig.Servers = append(defaultConfig.Servers, struct {
			ID      string `yaml:"id"`
			Address string `yaml:"address"`
		}{ID: "local", Address: config.DefaultListenAddr})

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		data, err := yaml.Marshal(defaultConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		return defaultConfig, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg MCPConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ServerRegistry holds what the tool handlers need: a local checker and the
// known fcheckd servers for remote checks.
type ServerRegistry struct {
	Servers map[string]string
	Loader  image_service.ImageLoader
	Checker check_service.CheckService
	Client  *checkserver.Client
}

func addTools(s *server.MCPServer, registry *ServerRegistry) {
	checkTool := mcp.NewTool("check_image",
		mcp.WithDescription("Check an xv6 file system image for structural consistency"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the image file"),
		),
		mcp.WithString("server",
			mcp.Description("ID of an fcheckd server that should load and check the path instead"),
		),
	)
	s.AddTool(checkTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCheckImage(ctx, request, registry)
	})

	describeTool := mcp.NewTool("describe_image",
		mcp.WithDescription("Show the superblock and region layout of an xv6 file system image"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the image file"),
		),
	)
	s.AddTool(describeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDescribeImage(ctx, request, registry)
	})

	listServersTool := mcp.NewTool("list_servers",
		mcp.WithDescription("List the fcheckd servers available for remote checks"),
	)
	s.AddTool(listServersTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids := make([]string, 0, len(registry.Servers))
		for id := range registry.Servers {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		result := "Available servers:\n"
		for _, id := range ids {
			result += fmt.Sprintf("- %s: %s\n", id, registry.Servers[id])
		}
		return mcp.NewToolResultText(result), nil
	})
}

func handleCheckImage(ctx context.Context, request mcp.CallToolRequest, registry *ServerRegistry) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	serverID, _ := request.RequireString("server")
	if serverID != "" {
		addr, ok := registry.Servers[serverID]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Server %s not found", serverID)), nil
		}
		resp, err := registry.Client.CheckPath(ctx, addr, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Remote check failed: %v", err)), nil
		}
		if !resp.OK {
			return mcp.NewToolResultText(resp.Message), nil
		}
		return mcp.NewToolResultText("OK"), nil
	}

	img, err := registry.Loader.Load(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer img.Close()

	_, err = registry.Checker.Check(ctx, img.Data)
	if v, ok := check_service.AsViolation(err); ok {
		return mcp.NewToolResultText(v.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("OK"), nil
}

func handleDescribeImage(_ context.Context, request mcp.CallToolRequest, registry *ServerRegistry) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	img, err := registry.Loader.Load(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer img.Close()

	l, err := layout.Resolve(img.Data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var buf bytes.Buffer
	if err := l.Describe(&buf); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func newRegistry(cfg *MCPConfig, ls log_service.LogService) (*ServerRegistry, *grpccomm.GRPCCommunicator) {
	comm := grpccomm.NewGRPCCommunicator("", config.DefaultMaxMessageBytes, ls)
	servers := make(map[string]string, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers[s.ID] = s.Address
	}
	return &ServerRegistry{
		Servers: servers,
		Loader:  imageservice.NewLocalDiscImageLoader(ls, cfg.Mmap),
		Checker: sequential.NewSequentialCheckService(ls),
		Client:  checkserver.NewClient(comm, "mcp-server"),
	}, comm
}

func main() {
	configPath := flag.String("config", "config/mcp.yaml", "Path to MCP config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so logs are not written anywhere
	registry, comm := newRegistry(cfg, zaplog.NewNopLogService())
	defer comm.Stop()

	s := server.NewMCPServer(
		"fcheck",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	addTools(s, registry)

	if err := server.ServeStdio(s); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}

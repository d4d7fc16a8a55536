// Package main contains a command to reconstruct point clouds from octrees.
package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"github.com/Jian-Lu-gis/O-CNN-AS/octree"
	"github.com/Jian-Lu-gis/O-CNN-AS/pointcloud"
)

var logger = golog.NewDevelopmentLogger("octree2points")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	InFile     string `flag:"0,required,usage=input .octree file"`
	OutFile    string `flag:"out,usage=output .points file"`
	DepthStart int    `flag:"depth_start,default=0,usage=shallowest layer to reconstruct"`
	DepthEnd   int    `flag:"depth_end,default=10,usage=deepest layer to reconstruct"`
	PLY        bool   `flag:"ply,usage=write an ascii PLY file instead"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	tree := octree.NewOctree(logger)
	if err := octree.ReadOctreeFromFile(tree, argsParsed.InFile); err != nil {
		return err
	}

	cloud, err := tree.ToPoints(argsParsed.DepthStart, argsParsed.DepthEnd)
	if err != nil {
		return err
	}

	outFile := argsParsed.OutFile
	base := strings.TrimSuffix(argsParsed.InFile, filepath.Ext(argsParsed.InFile))
	if argsParsed.PLY {
		if outFile == "" {
			outFile = base + ".ply"
		}
		//nolint:gosec
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		if err := pointcloud.WriteCloudToPLY(cloud, f); err != nil {
			return err
		}
	} else {
		if outFile == "" {
			outFile = base + ".points"
		}
		if err := pointcloud.WriteCloudToFile(cloud, outFile); err != nil {
			return err
		}
	}
	logger.Infow("wrote cloud", "file", outFile, "points", cloud.PtNum())
	return nil
}

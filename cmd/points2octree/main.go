// Package main contains a command to convert point clouds into octrees.
package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"github.com/Jian-Lu-gis/O-CNN-AS/octree"
	"github.com/Jian-Lu-gis/O-CNN-AS/pointcloud"
)

var logger = golog.NewDevelopmentLogger("points2octree")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	InFile  string `flag:"0,required,usage=input .points or .las file"`
	OutFile string `flag:"out,usage=output .octree file"`
	Config  string `flag:"config,usage=build config YAML file"`

	VoxelSize float64 `flag:"voxel_size,default=0,usage=downsample with the given voxel size before building"`

	Depth         int  `flag:"depth,default=-1,usage=octree depth"`
	FullLayer     int  `flag:"full_layer,default=-1,usage=full layer"`
	Adaptive      bool `flag:"adaptive,usage=enable adaptive trimming"`
	AdaptiveLayer int  `flag:"adp_depth,default=-1,usage=adaptive layer"`
	SplitLabel    bool `flag:"split_label,usage=compute split labels"`
	NodeFeature   bool `flag:"node_feature,usage=store features on every layer"`
	Displace      bool `flag:"node_dis,usage=store displacements"`
	Key2XYZ       bool `flag:"key2xyz,usage=store keys as packed coordinates"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := octree.DefaultBuildConfig()
	if argsParsed.Config != "" {
		var err error
		if cfg, err = octree.ReadBuildConfig(argsParsed.Config); err != nil {
			return err
		}
	}
	if argsParsed.Depth >= 0 {
		cfg.Depth = argsParsed.Depth
	}
	if argsParsed.FullLayer >= 0 {
		cfg.FullLayer = argsParsed.FullLayer
	}
	if argsParsed.AdaptiveLayer >= 0 {
		cfg.AdaptiveLayer = argsParsed.AdaptiveLayer
	}
	cfg.Adaptive = cfg.Adaptive || argsParsed.Adaptive
	cfg.SplitLabel = cfg.SplitLabel || argsParsed.SplitLabel
	cfg.NodeFeature = cfg.NodeFeature || argsParsed.NodeFeature
	cfg.Displace = cfg.Displace || argsParsed.Displace
	cfg.Key2XYZ = cfg.Key2XYZ || argsParsed.Key2XYZ
	if err := cfg.Validate(); err != nil {
		return err
	}

	cloud, err := pointcloud.NewCloudFromFile(argsParsed.InFile, logger)
	if err != nil {
		return err
	}
	if argsParsed.VoxelSize > 0 {
		if cloud, err = cloud.Downsample(argsParsed.VoxelSize); err != nil {
			return err
		}
		logger.Debugw("downsampled cloud", "voxel_size", argsParsed.VoxelSize, "points", cloud.PtNum())
	}

	tree := octree.NewOctree(logger)
	if err := tree.Build(cfg, cloud); err != nil {
		return err
	}

	outFile := argsParsed.OutFile
	if outFile == "" {
		base := strings.TrimSuffix(argsParsed.InFile, filepath.Ext(argsParsed.InFile))
		outFile = base + ".octree"
	}
	if err := octree.WriteOctreeToFile(tree, outFile); err != nil {
		return err
	}
	logger.Infow("wrote octree", "file", outFile, "nodes", tree.Info().TotalNnum())
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wiwaszko/ubift/internal/recovery"
	"github.com/wiwaszko/ubift/internal/render"
	"github.com/wiwaszko/ubift/internal/ubiferrors"
	"github.com/wiwaszko/ubift/internal/ubifs"
	"github.com/wiwaszko/ubift/internal/ubiftcli"
)

// Unix mode bits just enough of, to classify a dentry/inode for display.
const (
	modeFmt  = 0o170000
	modeDir  = 0o040000
	modeLink = 0o120000
)

func modeTypeName(mode uint32) string {
	switch mode & modeFmt {
	case modeDir:
		return "dir"
	case modeLink:
		return "symlink"
	default:
		return "file"
	}
}

func dentryTypeName(t uint8) string {
	switch t {
	case recovery.DentryTypeDir:
		return "dir"
	case recovery.DentryTypeSymlink:
		return "symlink"
	default:
		return "file"
	}
}

func newFsstatCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "fsstat IMAGE PARTITION_OFFSET VOLUME_NAME",
		Short: "print the UBIFS superblock and master node summary",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			fs, err := ubiftcli.OpenUBIFS(vol)
			if err != nil {
				return err
			}

			summary := render.FSStat{
				MinIOSize:   fs.SB.MinIOSize,
				LEBSize:     fs.SB.LEBSize,
				LEBCount:    fs.SB.LEBCount,
				Fanout:      fs.SB.Fanout,
				Compression: ubifs.CompressionName(fs.SB.DefaultCompr),
				HighestInum: fs.Master.HighestInum,
				CommitNo:    fs.Master.CommitNo,
				LogLNum:     fs.Master.LogLNum,
				RootLNum:    fs.Master.RootLNum,
				RootOffset:  fs.Master.RootOffset,
			}
			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, summary, render.PrintFSStat)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	return cmd
}

func newFlsCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	var deleted bool
	cmd := &cobra.Command{
		Use:   "fls IMAGE PARTITION_OFFSET VOLUME_NAME [INODE]",
		Short: "list directory entries, optionally including deleted ones",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, inst, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			ino := uint32(ubifs.RootIno)
			if len(args) == 4 {
				v, err := ubiftcli.ParseOffset(args[3])
				if err != nil {
					return err
				}
				ino = uint32(v)
			}

			fs, err := ubiftcli.OpenUBIFS(vol)
			if err != nil {
				return err
			}

			entries, err := fs.ListDir(ino, false)
			if err != nil {
				return err
			}
			var rows []render.DirEntryRow
			for _, e := range entries {
				rows = append(rows, render.DirEntryRow{Inode: e.Inode, Parent: ino, Name: e.Name, Type: dentryTypeName(e.Type)})
			}

			if deleted {
				eng, err := recovery.New(vol, inst)
				if err != nil {
					return err
				}
				recovered, _, err := eng.DeletedView(cmd.Context())
				if err != nil {
					return err
				}
				for _, re := range recovered {
					name := re.Name
					if name == "" {
						name = fmt.Sprintf("inode_%d", re.Inode.Ino)
					}
					switch {
					case re.Orphan && ino == ubifs.RootIno:
						rows = append(rows, render.DirEntryRow{Inode: re.Inode.Ino, Parent: 0, Name: name, Type: modeTypeName(re.Inode.Node.Mode), Deleted: true})
					case !re.Orphan && re.Parent == ino:
						rows = append(rows, render.DirEntryRow{Inode: re.Inode.Ino, Parent: re.Parent, Name: name, Type: modeTypeName(re.Inode.Node.Mode), Deleted: true})
					}
				}
			}

			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, rows, render.PrintDirEntries)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	cmd.Flags().BoolVar(&deleted, "deleted", false, "include recoverable deleted entries")
	return cmd
}

func newIlsCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	var deleted bool
	cmd := &cobra.Command{
		Use:   "ils IMAGE PARTITION_OFFSET VOLUME_NAME",
		Short: "list inode metadata rows",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, inst, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			fs, err := ubiftcli.OpenUBIFS(vol)
			if err != nil {
				return err
			}
			live, err := fs.ListInodes()
			if err != nil {
				return err
			}

			seen := make(map[uint32]bool, len(live))
			var rows []render.InodeStat
			for _, n := range live {
				seen[n.Key.Inum] = true
				rows = append(rows, inodeStatRow(n))
			}

			if deleted {
				eng, err := recovery.New(vol, inst)
				if err != nil {
					return err
				}
				recovered, _, err := eng.DeletedView(cmd.Context())
				if err != nil {
					return err
				}
				for _, re := range recovered {
					if seen[re.Inode.Ino] {
						continue
					}
					seen[re.Inode.Ino] = true
					rows = append(rows, inodeStatRow(re.Inode.Node))
				}
			}

			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, rows, render.PrintInodeList)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	cmd.Flags().BoolVar(&deleted, "deleted", false, "include recoverable deleted inodes")
	return cmd
}

func inodeStatRow(n *ubifs.InodeNode) render.InodeStat {
	return render.InodeStat{
		Inode:       n.Key.Inum,
		Size:        n.Size,
		Nlink:       n.Nlink,
		Mode:        n.Mode,
		UID:         n.UID,
		GID:         n.GID,
		Compression: ubifs.CompressionName(n.Compression),
	}
}

func newIstatCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "istat IMAGE PARTITION_OFFSET VOLUME_NAME INODE",
		Short: "print one inode's metadata",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			inoRaw, err := ubiftcli.ParseOffset(args[3])
			if err != nil {
				return err
			}

			fs, err := ubiftcli.OpenUBIFS(vol)
			if err != nil {
				return err
			}
			n, err := fs.StatInode(uint32(inoRaw))
			if err != nil {
				return err
			}
			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, inodeStatRow(n), render.PrintInodeStat)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	return cmd
}

func newIcatCmd() *cobra.Command {
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "icat IMAGE PARTITION_OFFSET VOLUME_NAME INODE",
		Short: "dump one inode's file contents",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			inoRaw, err := ubiftcli.ParseOffset(args[3])
			if err != nil {
				return err
			}
			ino := uint32(inoRaw)

			fs, err := ubiftcli.OpenUBIFS(vol)
			if err != nil {
				return err
			}
			stat, err := fs.StatInode(ino)
			if err != nil {
				return err
			}
			data, err := fs.ReadInodeData(ino, stat.Size)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	gf.register(cmd)
	return cmd
}

func newFfindCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "ffind IMAGE PARTITION_OFFSET VOLUME_NAME INODE",
		Short: "find every directory entry pointing at an inode",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			inoRaw, err := ubiftcli.ParseOffset(args[3])
			if err != nil {
				return err
			}
			ino := uint32(inoRaw)

			fs, err := ubiftcli.OpenUBIFS(vol)
			if err != nil {
				return err
			}
			dentries, err := fs.FindDentriesFor(ino)
			if err != nil {
				return err
			}
			if len(dentries) == 0 {
				return ubiferrors.InputError(fmt.Sprintf("no dentries found for inode %d", ino), nil)
			}

			rows := make([]render.DirEntryRow, len(dentries))
			for i, d := range dentries {
				rows[i] = render.DirEntryRow{Inode: ino, Parent: d.Key.Inum, Name: d.Name, Type: dentryTypeName(d.Type), Deleted: d.Inode == 0}
			}
			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, rows, render.PrintDirEntries)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	return cmd
}

func newJlsCmd() *cobra.Command {
	var ff formatFlags
	var gf geometryFlags
	cmd := &cobra.Command{
		Use:   "jls IMAGE PARTITION_OFFSET VOLUME_NAME",
		Short: "list journal (bud) nodes in sequence order",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := ubiftcli.ParseOffset(args[1])
			if err != nil {
				return err
			}
			img, _, vol, err := ubiftcli.OpenVolumeAt(args[0], off, gf.pebSize, args[2])
			if err != nil {
				return err
			}
			defer img.Close()

			master, err := ubifs.ReadMaster(vol)
			if err != nil {
				return err
			}
			entries, err := ubifs.JournalEntries(vol, master)
			if err != nil {
				return err
			}

			rows := make([]render.JournalEntryRow, len(entries))
			for i, e := range entries {
				key, _ := e.Node.Key()
				rows[i] = render.JournalEntryRow{
					SeqNum: e.Node.Header.SeqNum,
					LEB:    e.LEB,
					Offset: e.Node.Offset,
					Type:   e.Node.Header.NodeType.String(),
					Key:    fmt.Sprintf("(%d,%s,%d)", key.Inum, key.Type, key.Offset),
				}
			}
			return render.Emit(cmd.OutOrStdout(), ff.format, ff.pretty, rows, render.PrintJournal)
		},
	}
	ff.register(cmd)
	gf.register(cmd)
	return cmd
}
